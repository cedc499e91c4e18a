package params

import (
	"net/url"
	"testing"
)

var testDefaults = Defaults{
	Voice:      "matthew",
	InputRate:  16000,
	OutputRate: 24000,
	Channels:   1,
}

func resolveQuery(t *testing.T, raw string) ConnectionParams {
	t.Helper()
	q, err := url.ParseQuery(raw)
	if err != nil {
		t.Fatalf("ParseQuery(%q) error = %v", raw, err)
	}
	return Resolve(q, testDefaults)
}

func TestResolveDefaults(t *testing.T) {
	p := resolveQuery(t, "")
	if p.Voice != "matthew" || p.AssistantLang != "auto" || !p.AllowCodeSwitch {
		t.Fatalf("unexpected defaults: %+v", p)
	}
	if p.InputRate != 16000 || p.OutputRate != 24000 || p.Channels != 1 {
		t.Fatalf("unexpected audio defaults: %+v", p)
	}
	if p.Format != "pcm" || p.Endpointing != "LOW" {
		t.Fatalf("unexpected format/endpointing: %+v", p)
	}
	if p.Inference.MaxTokens != 256 || p.Inference.Temperature != 0.2 || p.Inference.TopP != 0.9 {
		t.Fatalf("unexpected inference defaults: %+v", p.Inference)
	}
}

func TestResolveOutOfRangeSampleRateFallsBack(t *testing.T) {
	p := resolveQuery(t, "input_rate=999999")
	if p.InputRate != 16000 {
		t.Fatalf("InputRate = %d, want default 16000", p.InputRate)
	}
	p = resolveQuery(t, "input_rate=not-a-number")
	if p.InputRate != 16000 {
		t.Fatalf("InputRate = %d, want default 16000", p.InputRate)
	}
}

func TestResolveMembershipLists(t *testing.T) {
	p := resolveQuery(t, "voice=tiffany&assistant_lang=fr-FR&endpointing=MEDIUM&output_rate=48000&channels=2")
	if p.Voice != "tiffany" || p.AssistantLang != "fr-FR" || p.Endpointing != "MEDIUM" {
		t.Fatalf("unexpected params: %+v", p)
	}
	if p.OutputRate != 48000 || p.Channels != 2 {
		t.Fatalf("unexpected audio params: %+v", p)
	}

	p = resolveQuery(t, "voice=hal9000&assistant_lang=xx-XX&endpointing=EXTREME&channels=7")
	if p.Voice != "matthew" || p.AssistantLang != "auto" || p.Endpointing != "LOW" || p.Channels != 1 {
		t.Fatalf("invalid values should fall back: %+v", p)
	}
}

func TestResolveClampsInferenceKnobs(t *testing.T) {
	p := resolveQuery(t, "max_tokens=999999&temperature=7.5&top_p=-3")
	if p.Inference.MaxTokens != 8192 {
		t.Fatalf("MaxTokens = %d, want clamped 8192", p.Inference.MaxTokens)
	}
	if p.Inference.Temperature != 1 {
		t.Fatalf("Temperature = %v, want clamped 1", p.Inference.Temperature)
	}
	if p.Inference.TopP != 0 {
		t.Fatalf("TopP = %v, want clamped 0", p.Inference.TopP)
	}

	p = resolveQuery(t, "max_tokens=0")
	if p.Inference.MaxTokens != 1 {
		t.Fatalf("MaxTokens = %d, want clamped 1", p.Inference.MaxTokens)
	}

	p = resolveQuery(t, "max_tokens=banana&temperature=banana")
	if p.Inference.MaxTokens != 256 || p.Inference.Temperature != 0.2 {
		t.Fatalf("unparseable values should fall back: %+v", p.Inference)
	}
}

func TestResolveCodeSwitch(t *testing.T) {
	for _, v := range []string{"0", "false", "False"} {
		if p := resolveQuery(t, "code_switch="+v); p.AllowCodeSwitch {
			t.Fatalf("code_switch=%q should disable code switching", v)
		}
	}
	for _, v := range []string{"", "1", "true", "anything"} {
		if p := resolveQuery(t, "code_switch="+v); !p.AllowCodeSwitch {
			t.Fatalf("code_switch=%q should allow code switching", v)
		}
	}
}
