package model

// KDFParams records the scrypt cost parameters a wallet was sealed with, so
// parameters can be strengthened over time without breaking older files.
type KDFParams struct {
	N      int `json:"n"`
	R      int `json:"r"`
	P      int `json:"p"`
	KeyLen int `json:"keyLen"`
}

// EncryptedWallet is one persisted wallet record. The private key never
// touches disk outside CipherText; salt, nonce and ciphertext are base64.
type EncryptedWallet struct {
	Address    string    `json:"address"`
	PublicKey  string    `json:"publicKey"`
	Salt       string    `json:"salt"`
	Nonce      string    `json:"nonce"`
	CipherText string    `json:"cipherText"`
	KDF        KDFParams `json:"kdf"`
	QR         string    `json:"QR"` // PNG of the address, base64
	CreatedAt  string    `json:"createdAt"`
}

// StoreFile is the on-disk layout of the wallet store.
// Current, if non-empty, names an existing wallet.
type StoreFile struct {
	Version int                        `json:"version"`
	Current string                     `json:"current"`
	Wallets map[string]EncryptedWallet `json:"wallets"`
}

// WalletSummary is the listing view: never any private material.
type WalletSummary struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	PublicKey string `json:"publicKey"`
	Current   bool   `json:"current"`
}

// BalanceView labels the balance as node-reported: the engine cannot verify
// it cryptographically.
type BalanceView struct {
	Address      string `json:"address"`
	NodeReported uint64 `json:"nodeReportedBalance"` // nano
}
