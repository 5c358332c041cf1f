// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package normalize canonicalizes user-supplied identity text before it reaches storage.

Emails are compared by exact match in the database, so two spellings of the same
address must collapse to one form. Display names are only NFC-composed so that
visually identical names are byte-identical.
*/
package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var fold = cases.Fold()

// Email trims, NFC-composes and case-folds an address.
func Email(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	return fold.String(norm.NFC.String(email))
}

// Name trims and NFC-composes a display name. Case is preserved.
func Name(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
