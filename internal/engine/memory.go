package engine

// Value is the tri-state result of a fact lookup. A fact absent from
// both maps is Unknown; there is no stored "unknown" value.
type Value int8

const (
	Unknown Value = iota
	False
	True
)

// Known reports whether the value is an explicit true or false.
func (v Value) Known() bool {
	return v != Unknown
}

func valueOf(b bool) Value {
	if b {
		return True
	}
	return False
}

// WorkingMemory holds the session facts: findings supplied by the user
// and hypotheses derived by fired rules. The two maps are disjoint in
// normal operation because derivable hypotheses are never asked.
type WorkingMemory struct {
	findings   map[string]bool
	hypotheses map[string]bool
}

// NewWorkingMemory creates an empty working memory.
func NewWorkingMemory() *WorkingMemory {
	return &WorkingMemory{
		findings:   make(map[string]bool),
		hypotheses: make(map[string]bool),
	}
}

// GetValue looks a fact up, findings first, then hypotheses. Unknown
// keys are not an error.
func (m *WorkingMemory) GetValue(key string) Value {
	if v, ok := m.findings[key]; ok {
		return valueOf(v)
	}
	if v, ok := m.hypotheses[key]; ok {
		return valueOf(v)
	}
	return Unknown
}

// HasKey reports whether the fact has a known value in either map.
func (m *WorkingMemory) HasKey(key string) bool {
	if _, ok := m.findings[key]; ok {
		return true
	}
	_, ok := m.hypotheses[key]
	return ok
}

// SetFinding records a user-supplied fact.
func (m *WorkingMemory) SetFinding(key string, value bool) {
	m.findings[key] = value
}

// PutHypothesis records a derived fact.
func (m *WorkingMemory) PutHypothesis(key string, value bool) {
	m.hypotheses[key] = value
}

// Clear empties both fact maps.
func (m *WorkingMemory) Clear() {
	m.findings = make(map[string]bool)
	m.hypotheses = make(map[string]bool)
}

// Findings returns a copy of the user-supplied facts.
func (m *WorkingMemory) Findings() map[string]bool {
	return copyFacts(m.findings)
}

// Hypotheses returns a copy of the derived facts.
func (m *WorkingMemory) Hypotheses() map[string]bool {
	return copyFacts(m.hypotheses)
}

func (m *WorkingMemory) restore(findings, hypotheses map[string]bool) {
	m.findings = copyFacts(findings)
	m.hypotheses = copyFacts(hypotheses)
}

func copyFacts(src map[string]bool) map[string]bool {
	dst := make(map[string]bool, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
