package discord

import "strings"

const referendaBaseURL = "https://polkadot.polkassembly.io/referenda/"

// ReferendumURL links a referendum index on Polkassembly.
func ReferendumURL(index string) string {
	return referendaBaseURL + strings.TrimSpace(index)
}
