package ports

// PasswordHasher derives and verifies salted one-way password hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}
