package flows

// Deps groups flow dependency sets. The root engine builds this once and
// delegates each public method to the matching flow.
type Deps struct {
	PasswordReset PasswordResetDeps
	Account       AccountDeps
	Login         LoginDeps
	Session       SessionDeps
}
