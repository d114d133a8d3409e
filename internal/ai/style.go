package ai

import "strings"

// MaxPromptLength bounds image prompts after trimming.
const MaxPromptLength = 2000

// stylePresets maps a style key to the suffix appended to the prompt.
// "none" and unknown keys expand to nothing.
var stylePresets = map[string]string{
	"none":      "",
	"cinematic": ", cinematic lighting, movie grain, dramatic atmosphere, highly detailed, 8k, hyperrealistic",
	"cyberpunk": ", cyberpunk style, neon lights, synthwave, futuristic city, high contrast, sci-fi, detailed",
	"ink":       ", traditional chinese ink painting, black and white, abstract, artistic, brush strokes, masterpiece",
	"3d":        ", 3d render, blender, c4d, unreal engine, octane render, clay material, soft lighting",
}

// ExpandStyle appends the suffix registered for the style key. Unknown
// keys leave the prompt unmodified.
func ExpandStyle(prompt, styleKey string) string {
	suffix, ok := stylePresets[styleKey]
	if !ok {
		return prompt
	}
	return prompt + suffix
}

// ValidatePrompt trims the prompt and enforces the length bounds. It
// returns the trimmed prompt, or a ValidationError describing the
// rejection.
func ValidatePrompt(prompt string) (string, error) {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return "", &ValidationError{Reason: "prompt must not be empty"}
	}
	if len([]rune(trimmed)) > MaxPromptLength {
		return "", &ValidationError{Reason: "prompt exceeds 2000 characters"}
	}
	return trimmed, nil
}
