package profile

import (
	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns a hash of the profile contents. Map keys are encoded
// in sorted order, so equal profiles have equal fingerprints. Profiles that
// cannot be encoded, such as ones holding NaN or infinite times, have no
// fingerprint.
func Fingerprint(p *Profile) (uint64, error) {
	return fingerprint(p)
}

// ThreadFingerprint returns a hash of a single thread.
func ThreadFingerprint(t *Thread) (uint64, error) {
	return fingerprint(t)
}

func fingerprint(v any) (uint64, error) {
	h := xxhash.New()
	if err := json.NewEncoder(h).Encode(v); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}
