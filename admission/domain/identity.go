package domain

// Account é o descritor de conta autenticada fornecido pelo colaborador de sessão.
// O core nunca autentica; apenas confia no que recebe.
type Account struct {
	ID   string
	Name string
	Type string
}

// RequestMeta são os metadados crus da requisição, já extraídos do transporte.
type RequestMeta struct {
	Address   string
	Signature string
	Account   *Account
}

// Identity é o resultado do Identity Resolver.
type Identity struct {
	Address     string
	Fingerprint string

	// Vazio significa submissor anônimo.
	AccountID   string
	AccountName string
	AccountType string
}

func (i Identity) Registered() bool { return i.AccountID != "" }

// ContactHandles são os contatos declarados pelo submissor.
type ContactHandles struct {
	Discord string
	Roblox  string
}

func (c ContactHandles) Empty() bool { return c.Discord == "" && c.Roblox == "" }
