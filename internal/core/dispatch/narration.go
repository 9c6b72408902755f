package dispatch

import (
	"fmt"
	"strings"
)

// CaseInfo is the patient case the field unit is dispatching for.
type CaseInfo struct {
	CaseID     string
	TeamID     string
	AgeBand    string // e.g. "60대"
	Age        int
	Sex        string // "male" | "female" | ""
	Symptom    string
	PreKTAS    int
	Summary    string // SBAR / ARS summary, produced upstream
	Transcript string // Raw STT text
	Lat        float64
	Lon        float64
}

// BuildNarration returns the text the ARS reads to the hospital.
// It prefers the structured form ("현재 60대 남성 <symptom>") and falls back to
// the summary, then the raw transcript.
func BuildNarration(c CaseInfo) string {
	parts := []string{"현재"}
	if c.AgeBand != "" {
		parts = append(parts, c.AgeBand)
	}
	switch c.Sex {
	case "male":
		parts = append(parts, "남성")
	case "female":
		parts = append(parts, "여성")
	}
	if c.Symptom != "" {
		parts = append(parts, c.Symptom)
	}
	if len(parts) > 1 {
		return strings.Join(parts, " ")
	}
	if s := strings.TrimSpace(c.Summary); s != "" {
		return s
	}
	return strings.TrimSpace(c.Transcript)
}

// AgeBand maps an age to the band the field unit reports:
// 영유아(0~1세), 소아(2~9세), 10대 … 70대, 80대 이상.
func AgeBand(age int) string {
	switch {
	case age < 0:
		return ""
	case age <= 1:
		return "영유아(0~1세)"
	case age <= 9:
		return "소아(2~9세)"
	case age >= 80:
		return "80대 이상"
	}
	return fmt.Sprintf("%d대", age/10*10)
}
