package schemas

// SiteValueRecord holds the stored values for one site profile. The record is
// owned by the profile store; the engine consumes it read-only.
//
// Values maps standard fields to plain strings. Logo and screenshot payloads
// travel separately in Images as data URLs so that text handling never has to
// special-case binary content.
type SiteValueRecord struct {
	ID     string                   `json:"id"`
	Name   string                   `json:"name,omitempty"`
	Values map[StandardField]string `json:"values"`
	Images map[StandardField]string `json:"images,omitempty"`
}

// Value returns the stored text value for a field, if any.
func (r *SiteValueRecord) Value(f StandardField) (string, bool) {
	if r == nil || r.Values == nil {
		return "", false
	}
	v, ok := r.Values[f]
	return v, ok && v != ""
}

// Image returns the stored data-URL image for a field, if any. Only logo and
// screenshot slots carry images.
func (r *SiteValueRecord) Image(f StandardField) (string, bool) {
	if r == nil || r.Images == nil {
		return "", false
	}
	v, ok := r.Images[f]
	return v, ok && v != ""
}
