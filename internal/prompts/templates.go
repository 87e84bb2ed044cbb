package prompts

// RegisterAll installs the built-in prompt specs into r. Each prompt asks
// for strict JSON; recovery tolerates backends that ignore the instruction.
func RegisterAll(r *Registry) {
	r.RegisterSpec(Spec{
		Name:    PromptKeyPointExtract,
		Version: 1,
		System: `You are an expert technical analyst. You extract the key concepts from
technical documents and rank them by importance. Respond with a JSON array
only, no commentary.`,
		User: `Document title: {{.Title}}

Document content:
{{.Content}}

Extract at most {{.MaxPoints}} key concepts, most important first. Respond
with a JSON array of objects with exactly these fields:
[{"concept": "...", "description": "...", "importance": "high|medium|low",
"category": "...", "examples": ["..."]}]`,
	})

	r.RegisterSpec(Spec{
		Name:    PromptLearningPath,
		Version: 1,
		System: `You are a curriculum designer. You turn ranked concepts into a staged
learning path for a {{.Level}} learner. Respond with a JSON array only.`,
		User: `Key concepts:
{{.KeyPointsBlock}}

Design between 3 and 8 ordered learning steps. Respond with a JSON array of
objects with exactly these fields:
[{"step": "...", "time": "30 minutes", "description": "...", "code": "",
"prerequisites": ["..."], "resources": ["..."]}]`,
	})

	r.RegisterSpec(Spec{
		Name:    PromptQuizGenerate,
		Version: 1,
		System: `You are an assessment author. You write quiz questions that test
understanding of the given concepts. Respond with a JSON array only.`,
		User: `Key concepts:
{{.KeyPointsBlock}}

Source excerpt:
{{.Content}}

Write {{.Count}} quiz questions with a difficulty mix of {{.DifficultyMix}}.
Allowed types: multiple_choice, true_false, fill_blank, short_answer.
Rules: multiple_choice needs at least 2 options and the correct answer must
be one of them; true_false options are exactly "True" and "False";
fill_blank has no options and the question contains "____".
Respond with a JSON array of objects with exactly these fields:
[{"type": "multiple_choice", "question": "...", "options": ["..."],
"correct_answer": "...", "explanation": "...",
"difficulty": "easy|medium|hard", "concept": "..."}]`,
	})

	r.RegisterSpec(Spec{
		Name:    PromptAnswerQuestion,
		Version: 1,
		System: `You are a patient tutor answering questions about one specific document.
Ground every answer in the document; say so when the document does not cover
the question. Answer in plain prose.`,
		User: `Document title: {{.Title}}

Document content:
{{.Content}}

{{if .HistoryBlock}}Recent conversation:
{{.HistoryBlock}}

{{end}}Question: {{.Question}}`,
	})
}
