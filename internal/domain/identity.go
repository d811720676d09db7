package domain

// Identity describes the authenticated caller as supplied by the external
// auth system. The engine trusts these values but validates role legality of
// every transition itself.
type Identity struct {
	UserID         string
	Role           Role
	LineOfBusiness string
}
