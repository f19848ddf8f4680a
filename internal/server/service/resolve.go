package service

import "strings"

// RefKind classifies an inbound start parameter.
type RefKind int

const (
	// RefWelcome: no parameter; show welcome content.
	RefWelcome RefKind = iota
	// RefFile: download_<token>, direct single-file delivery.
	RefFile
	// RefBatch: download_batch_<id>, batch delivery.
	RefBatch
	// RefSecure: secure_download_<token>, PIN verification step.
	RefSecure
	// RefRelay: anything else; bootstrap the redirect through the
	// verification collaborator. Malformed prefixes land here on purpose:
	// that is how the two-step redirect flow starts.
	RefRelay
)

const (
	prefixFile   = "download_"
	prefixBatch  = "download_batch_"
	prefixSecure = "secure_download_"
)

// ClassifyReference parses a start parameter into its resolution path and
// the reference it carries. The batch prefix is checked before the file
// prefix, which it extends. A prefix with nothing after it is malformed and
// falls through to the relay branch like any other unrecognized parameter.
func ClassifyReference(param string) (RefKind, string) {
	if param == "" {
		return RefWelcome, ""
	}

	for _, p := range []struct {
		prefix string
		kind   RefKind
	}{
		{prefixBatch, RefBatch},
		{prefixSecure, RefSecure},
		{prefixFile, RefFile},
	} {
		if strings.HasPrefix(param, p.prefix) {
			if rest := param[len(p.prefix):]; rest != "" {
				return p.kind, rest
			}
			return RefRelay, param
		}
	}

	return RefRelay, param
}
