package judge

import (
	"fmt"

	"tribunal/internal/evidence"
	"tribunal/internal/rubric"
)

const prosecutorPrompt = `You are the PROSECUTOR on an audit panel.
Assume nothing works until the evidence shows it. Anything the evidence does not
mark FOUND is treated as absent. Flag documentation that claims features the
repository evidence does not show. Score 1-2 for most work, 3 only for flawless
standard practice, never 4 or 5.`

const defensePrompt = `You are the DEFENSE on an audit panel.
Look for the intent behind the work and reward understanding even when the
execution is incomplete. Score 4-5 for any reasonable effort, 3 only for total
absence, never 1 or 2.`

const techLeadPrompt = `You are the TECH LEAD on an audit panel.
Ignore intent. Judge only whether the evidence shows something that works and
could ship. If it works but is unsafe, cap at 3. Prefer scores of 1, 3 or 5.`

const answerFormat = `Reply with a single JSON object:
{"score": <integer 1-5>, "argument": "<two or three sentences>", "cited_evidence": ["<evidence id>", ...]}`

func personaPrompt(role evidence.JudgeRole) string {
	var p string
	switch role {
	case evidence.Prosecutor:
		p = prosecutorPrompt
	case evidence.Defense:
		p = defensePrompt
	default:
		p = techLeadPrompt
	}
	return p + "\n\n" + answerFormat
}

func criterionPrompt(c rubric.Criterion, summary string) string {
	return fmt.Sprintf("CRITERION: %s\nCRITERION ID: %s\nDESCRIPTION: %s\n\nEVIDENCE:\n%s",
		c.Name, c.ID, c.Description, summary)
}
