package render

import "testing"

func TestStripSenderInfoRemovesTrailingFragment(t *testing.T) {
	t.Parallel()

	msg := `hello there <sender_info>{"host":"box","sessionId":"s1"}</sender_info>`
	got := StripSenderInfo(msg)
	if got != "hello there" {
		t.Errorf("StripSenderInfo = %q, want %q", got, "hello there")
	}
}

func TestStripSenderInfoNoFragment(t *testing.T) {
	t.Parallel()

	msg := "just a plain message"
	if got := StripSenderInfo(msg); got != msg {
		t.Errorf("StripSenderInfo(no fragment) = %q, want unchanged", got)
	}
}

func TestParseSenderInfoRoundTrip(t *testing.T) {
	t.Parallel()

	msg := `do the thing <sender_info>{"host":"box","sessionId":"s1","alias":"lucky-otter"}</sender_info>`
	info, ok := ParseSenderInfo(msg)
	if !ok {
		t.Fatal("ParseSenderInfo: ok = false, want true")
	}
	if info.Host != "box" || info.SessionID != "s1" || info.Alias != "lucky-otter" {
		t.Errorf("ParseSenderInfo = %+v, unexpected", info)
	}
}

func TestParseSenderInfoMissingFragment(t *testing.T) {
	t.Parallel()

	if _, ok := ParseSenderInfo("no fragment here"); ok {
		t.Error("ParseSenderInfo: ok = true for message without a fragment")
	}
}

func TestParseSenderInfoMalformedJSON(t *testing.T) {
	t.Parallel()

	msg := "<sender_info>{not json}</sender_info>"
	if _, ok := ParseSenderInfo(msg); ok {
		t.Error("ParseSenderInfo: ok = true for malformed JSON payload")
	}
}

func TestFormatWithAlias(t *testing.T) {
	t.Parallel()

	msg := `build status? <sender_info>{"host":"pi2","sessionId":"s1","alias":"lucky-otter"}</sender_info>`
	got := Format(msg)
	want := "from lucky-otter [remote: pi2]: build status?"
	if got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}
}

func TestFormatFallsBackToSessionID(t *testing.T) {
	t.Parallel()

	msg := `hi <sender_info>{"host":"pi2","sessionId":"s1"}</sender_info>`
	got := Format(msg)
	want := "from s1 [remote: pi2]: hi"
	if got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}
}

func TestFormatUntaggedMessage(t *testing.T) {
	t.Parallel()

	msg := "plain message, no tag"
	if got := Format(msg); got != msg {
		t.Errorf("Format(untagged) = %q, want unchanged", got)
	}
}

func TestFormatMalformedFragmentShowsRawMessage(t *testing.T) {
	t.Parallel()

	msg := "hi <sender_info>{not json}</sender_info>"
	if got := Format(msg); got != msg {
		t.Errorf("Format(malformed) = %q, want unchanged", got)
	}
}
