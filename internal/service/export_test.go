package service

// SetCompareHash replaces the bcrypt comparison used by Login.
func (a *Authenticator) SetCompareHash(f func(hash, password []byte) error) {
	a.compareHash = f
}
