// Package fixture declares tagged types used by the metadata tests from a
// package other than the one under test.
package fixture

// Settings shares its name with the Settings types of the metadata tests.
type Settings struct {
	Volume int `pref:"id:1;default:80"`
}
