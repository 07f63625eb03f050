package gemini

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/services"
)

const durationPlaceholder = "{duration}"

// basePrompts maps prompt versions onto their text. Changing a prompt means
// adding a version: the version is part of the content cache fingerprint.
var basePrompts = map[string]string{
	"v1": `Role
You are a transcription system for recorded classroom and meeting video. Produce an accurate, time-aligned transcript that captures every spoken word and the notable visual events, with complete time coverage.

Spoken text
* Transcribe verbatim, including filler words and grammatical errors.
* Mark unclear audio as [Unintelligible] and missing audio as [Inaudible].
* Transcribe non-English speech phonetically and add an English translation in parentheses.

Speakers
* Use "teacher" for the instructor.
* Use "student_A", "student_B" and so on for other participants, adding letters as new people speak.
* Use "speaker" when identity is unclear and "multiple_students" for group speech.

Events
* Add "event" entries only for notable changes: new instructional content on screen, a change in activity structure, or materials handed out.
* Do not describe clothing, hairstyles or the general room.
* Use "visual_description" for what is on screen when it helps understand the speech.

Coverage
* Cover the whole video from 00:00 to {duration} without gaps.
* Every entry needs "start_time" and "end_time" in MM:SS form; minutes may exceed 59.
* Entries must be in chronological order.

Output
Return only JSON with this shape:
{
  "transcript": [
    {"type": "utterance", "start_time": "MM:SS", "end_time": "MM:SS", "speaker": "teacher", "spoken_text": "..."},
    {"type": "event", "start_time": "MM:SS", "end_time": "MM:SS", "event_description": "...", "visual_description": "..."}
  ]
}`,
}

// PromptVersions lists the known prompt versions.
func PromptVersions() []string {
	versions := make([]string, 0, len(basePrompts))
	for v := range basePrompts {
		versions = append(versions, v)
	}
	slices.Sort(versions)
	return versions
}

// Segment describes the chunk a prompt is built for.
type Segment struct {
	Index         int
	Start         time.Duration
	End           time.Duration
	VideoDuration time.Duration
	KnownSpeakers []string
}

// BuildPrompt renders the versioned base prompt for one segment. Chunk-local
// timestamps start at 00:00 so the segment window is stated explicitly.
func BuildPrompt(version string, seg Segment) (string, error) {
	base, ok := basePrompts[strings.TrimSpace(version)]
	if !ok {
		return "", services.Wrap(services.ErrInvalidConfiguration, "analysis", "prompt",
			fmt.Sprintf("unknown prompt version %q (known: %s)", version, strings.Join(PromptVersions(), ", ")), nil)
	}
	length := seg.End - seg.Start
	var b strings.Builder
	b.WriteString(strings.ReplaceAll(base, durationPlaceholder, clock(length)))
	b.WriteString("\n\nSEGMENT INFORMATION:\n")
	fmt.Fprintf(&b, "- This is a %s segment of a longer video (segment %s to %s", clock(length), clock(seg.Start), clock(seg.End))
	if seg.VideoDuration > 0 {
		fmt.Fprintf(&b, " of %s", clock(seg.VideoDuration))
	}
	b.WriteString(")\n")
	fmt.Fprintf(&b, "- Timestamps are relative to the segment: cover 00:00 to %s completely\n", clock(length))
	b.WriteString("- Include entries for every period, even when nothing is said or audio is not recognizable")
	if len(seg.KnownSpeakers) > 0 {
		fmt.Fprintf(&b, "\n- Known speakers in this video: %s. Use these exact labels when you recognize them", strings.Join(seg.KnownSpeakers, ", "))
	}
	return b.String(), nil
}

// clock renders d as MM:SS with minutes allowed past 59.
func clock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
