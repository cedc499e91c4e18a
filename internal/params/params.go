// Package params resolves client-supplied connection negotiation parameters.
// Nothing here ever rejects a connection: invalid or absent values fall back
// to documented defaults, out-of-range numbers are clamped.
package params

import (
	"net/url"
	"strconv"
)

var allowedVoices = map[string]struct{}{
	"matthew": {}, "tiffany": {}, "amy": {}, "olivia": {},
	"kiara": {}, "arjun": {}, "ambre": {}, "florian": {},
	"beatrice": {}, "lorenzo": {}, "tina": {}, "lennart": {},
	"lupe": {}, "carlos": {}, "carolina": {}, "leo": {},
}

var allowedLocales = map[string]struct{}{
	"en-US": {}, "en-GB": {}, "en-AU": {}, "en-IN": {},
	"fr-FR": {}, "it-IT": {}, "de-DE": {}, "es-US": {},
	"pt-BR": {}, "hi-IN": {},
}

var allowedSampleRates = map[int]struct{}{16000: {}, 24000: {}, 48000: {}}

var allowedChannels = map[int]struct{}{1: {}, 2: {}}

var allowedEndpointing = map[string]struct{}{"HIGH": {}, "MEDIUM": {}, "LOW": {}}

// Inference is the per-connection inference configuration bundle.
type Inference struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// ConnectionParams is the immutable negotiated snapshot for one connection.
type ConnectionParams struct {
	Voice           string
	AssistantLang   string
	AllowCodeSwitch bool
	InputRate       int
	OutputRate      int
	Channels        int
	Format          string
	Endpointing     string
	Inference       Inference
}

// Defaults carries the configured fallback values for negotiation.
type Defaults struct {
	Voice      string
	InputRate  int
	OutputRate int
	Channels   int
}

// Resolve builds a fully-populated ConnectionParams from query parameters.
func Resolve(q url.Values, d Defaults) ConnectionParams {
	p := ConnectionParams{
		Voice:           allowedString(q.Get("voice"), d.Voice, allowedVoices),
		AssistantLang:   allowedString(q.Get("assistant_lang"), "auto", allowedLocales),
		AllowCodeSwitch: parseCodeSwitch(q.Get("code_switch")),
		InputRate:       allowedInt(q.Get("input_rate"), d.InputRate, allowedSampleRates),
		OutputRate:      allowedInt(q.Get("output_rate"), d.OutputRate, allowedSampleRates),
		Channels:        allowedInt(q.Get("channels"), d.Channels, allowedChannels),
		Format:          "pcm",
		Endpointing:     allowedString(q.Get("endpointing"), "LOW", allowedEndpointing),
		Inference: Inference{
			MaxTokens:   boundedInt(q.Get("max_tokens"), 256, 1, 8192),
			Temperature: boundedFloat(q.Get("temperature"), 0.2, 0, 1),
			TopP:        boundedFloat(q.Get("top_p"), 0.9, 0, 1),
		},
	}
	return p
}

func allowedString(v, fallback string, allowed map[string]struct{}) string {
	if v == "" {
		return fallback
	}
	if _, ok := allowed[v]; !ok {
		return fallback
	}
	return v
}

func allowedInt(v string, fallback int, allowed map[int]struct{}) int {
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	if _, ok := allowed[n]; !ok {
		return fallback
	}
	return n
}

func boundedInt(v string, fallback, min, max int) int {
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

func boundedFloat(v string, fallback, min, max float64) float64 {
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	if f < min {
		return min
	}
	if f > max {
		return max
	}
	return f
}

func parseCodeSwitch(v string) bool {
	switch v {
	case "0", "false", "False":
		return false
	default:
		return true
	}
}
