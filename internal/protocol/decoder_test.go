package protocol

import (
	"bytes"
	"testing"

	"github.com/LeNguyenAnhKhoa/shorttem-memory-agent/internal/memory"
	"github.com/LeNguyenAnhKhoa/shorttem-memory-agent/internal/query"
)

func sampleEvents(t *testing.T) []Event {
	t.Helper()
	return []Event{
		NewStepEvent("Loading session memory..."),
		NewSummaryEvent(memory.SessionSummary{
			KeyFacts:               []string{"fact one", "fact two"},
			MessageRangeSummarized: memory.MessageRange{From: 0, To: 4},
		}),
		NewQueryUnderstandingEvent(query.Understanding{
			OriginalQuery:  "what about there",
			IsAmbiguous:    true,
			RewrittenQuery: "what is the weather in Da Nang",
		}),
		NewClarifyingQuestionsEvent([]string{"Which city?", "Which day?"}),
		NewAnswerEvent("Sunny, around 32 degrees."),
	}
}

func encodeStream(t *testing.T, events []Event) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, ev := range events {
		payload, err := MarshalEvent(ev)
		if err != nil {
			t.Fatalf("MarshalEvent failed: %v", err)
		}
		buf.Write(payload)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// eventFingerprints reduces events to comparable form.
func eventFingerprints(t *testing.T, events []Event) []string {
	t.Helper()
	out := make([]string, 0, len(events))
	for _, ev := range events {
		payload, err := MarshalEvent(ev)
		if err != nil {
			t.Fatalf("MarshalEvent failed: %v", err)
		}
		out = append(out, string(payload))
	}
	return out
}

func sameEvents(t *testing.T, got, want []Event) {
	t.Helper()
	gotFp := eventFingerprints(t, got)
	wantFp := eventFingerprints(t, want)
	if len(gotFp) != len(wantFp) {
		t.Fatalf("decoded %d events, want %d", len(gotFp), len(wantFp))
	}
	for i := range gotFp {
		if gotFp[i] != wantFp[i] {
			t.Errorf("event %d = %s, want %s", i, gotFp[i], wantFp[i])
		}
	}
}

func TestDecoderSingleChunk(t *testing.T) {
	want := sampleEvents(t)
	stream := encodeStream(t, want)

	d := NewDecoder()
	got := d.Feed(stream)
	sameEvents(t, got, want)

	if dropped := d.Close(); dropped != 0 {
		t.Errorf("Close dropped %d bytes, want 0", dropped)
	}
}

// Decoding must be invariant under how the byte stream is partitioned,
// including splits inside a record and inside the separator run.
func TestDecoderChunkBoundaryInvariance(t *testing.T) {
	want := sampleEvents(t)
	stream := encodeStream(t, want)

	for split := 0; split <= len(stream); split++ {
		d := NewDecoder()
		var got []Event
		got = append(got, d.Feed(stream[:split])...)
		got = append(got, d.Feed(stream[split:])...)
		if len(got) != len(want) {
			t.Fatalf("split at %d: decoded %d events, want %d", split, len(got), len(want))
		}
		sameEvents(t, got, want)
	}
}

func TestDecoderByteAtATime(t *testing.T) {
	want := sampleEvents(t)
	stream := encodeStream(t, want)

	d := NewDecoder()
	var got []Event
	for i := range stream {
		got = append(got, d.Feed(stream[i:i+1])...)
	}
	sameEvents(t, got, want)
}

func TestDecoderZeroLengthChunks(t *testing.T) {
	want := sampleEvents(t)
	stream := encodeStream(t, want)

	d := NewDecoder()
	var got []Event
	got = append(got, d.Feed(nil)...)
	got = append(got, d.Feed([]byte{})...)
	got = append(got, d.Feed(stream)...)
	got = append(got, d.Feed([]byte{})...)
	sameEvents(t, got, want)
}

func TestDecoderHoldsIncompleteRecord(t *testing.T) {
	d := NewDecoder()

	payload, err := MarshalEvent(NewStepEvent("partial"))
	if err != nil {
		t.Fatalf("MarshalEvent failed: %v", err)
	}

	// Everything but the separator: no event yet.
	if got := d.Feed(payload); len(got) != 0 {
		t.Fatalf("incomplete record produced %d events", len(got))
	}
	// The separator completes it.
	got := d.Feed([]byte{'\n'})
	if len(got) != 1 {
		t.Fatalf("decoded %d events, want 1", len(got))
	}
	if got[0].GetType() != EventStep {
		t.Errorf("type = %s, want %s", got[0].GetType(), EventStep)
	}
}

func TestDecoderSkipsMalformedRecord(t *testing.T) {
	d := NewDecoder()

	stream := []byte("{broken json\n")
	stream = append(stream, encodeStream(t, []Event{NewAnswerEvent("still fine")})...)

	got := d.Feed(stream)
	if len(got) != 1 {
		t.Fatalf("decoded %d events, want 1 (malformed skipped)", len(got))
	}
	if got[0].GetType() != EventAnswer {
		t.Errorf("type = %s, want %s", got[0].GetType(), EventAnswer)
	}
}

func TestDecoderSkipsBlankLines(t *testing.T) {
	d := NewDecoder()

	stream := []byte("\n\n")
	stream = append(stream, encodeStream(t, []Event{NewStepEvent("after blanks")})...)
	stream = append(stream, '\n')

	got := d.Feed(stream)
	if len(got) != 1 {
		t.Fatalf("decoded %d events, want 1", len(got))
	}
}

func TestDecoderCloseDiscardsTrailingPartial(t *testing.T) {
	d := NewDecoder()

	if got := d.Feed([]byte(`{"type":"answer","content":"cut of`)); len(got) != 0 {
		t.Fatalf("partial record produced %d events", len(got))
	}

	dropped := d.Close()
	if dropped == 0 {
		t.Error("Close dropped 0 bytes, want > 0")
	}

	// The decoder is reusable after Close.
	got := d.Feed(encodeStream(t, []Event{NewStepEvent("fresh")}))
	if len(got) != 1 {
		t.Errorf("decoded %d events after Close, want 1", len(got))
	}
}
