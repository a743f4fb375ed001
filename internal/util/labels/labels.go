package labels

import (
	"maps"
	"strconv"
	"strings"
)

// Standard label keys.
const (
	KeySession   = "gpurace.io/session"
	KeyCandidate = "gpurace.io/candidate"
	KeyRound     = "gpurace.io/round"
	KeyManagedBy = "gpurace.io/managed-by"
)

// ManagedByGPURace is the default KeyManagedBy value.
const ManagedByGPURace = "gpurace"

// maxValue is Hetzner's label value length limit.
const maxValue = 63

// LabelBuilder provides a fluent interface for building resource labels.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a builder with the session label pre-set.
func NewLabelBuilder(session string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeySession:   Value(session),
			KeyManagedBy: ManagedByGPURace,
		},
	}
}

// WithCandidate adds the candidate label.
func (lb *LabelBuilder) WithCandidate(id string) *LabelBuilder {
	lb.labels[KeyCandidate] = Value(id)
	return lb
}

// WithRound adds the round label.
func (lb *LabelBuilder) WithRound(round int) *LabelBuilder {
	lb.labels[KeyRound] = strconv.Itoa(round)
	return lb
}

// WithManagedBy overrides the manager label.
func (lb *LabelBuilder) WithManagedBy(manager string) *LabelBuilder {
	lb.labels[KeyManagedBy] = Value(manager)
	return lb
}

// Merge adds all labels from extra, overwriting existing keys.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	maps.Copy(lb.labels, extra)
	return lb
}

// Build returns a copy of the labels.
func (lb *LabelBuilder) Build() map[string]string {
	return maps.Clone(lb.labels)
}

// SelectorForSession returns a label selector for every resource of a
// session.
func SelectorForSession(session string) string {
	return KeySession + "=" + Value(session)
}

// Value folds s into a valid label value: alphanumerics plus '-', '_' and
// '.', starting and ending alphanumeric, at most 63 characters. Other
// characters become '_'.
func Value(s string) string {
	b := []byte(s)
	for i, c := range b {
		if !isAlnum(c) && c != '-' && c != '_' && c != '.' {
			b[i] = '_'
		}
	}
	if len(b) > maxValue {
		b = b[:maxValue]
	}
	return strings.TrimFunc(string(b), func(r rune) bool {
		return r < 0x80 && !isAlnum(byte(r))
	})
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
