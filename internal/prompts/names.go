package prompts

type PromptName string

const (
	PromptKeyPointExtract PromptName = "keypoint_extract"
	PromptLearningPath    PromptName = "learning_path"
	PromptQuizGenerate    PromptName = "quiz_generate"
	PromptAnswerQuestion  PromptName = "answer_question"
)
