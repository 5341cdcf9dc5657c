// Package upstream provides the authenticated fetch engine for the meeting
// platform's REST API: paginated listings, date-range chunking, retry/backoff,
// and file downloads.
package upstream

import "time"

// Recording file types the pipeline cares about.
const (
	FileTypeTranscript = "TRANSCRIPT"
	FileTypeChat       = "CHAT"
)

// MeetingRef identifies one occurrence of a meeting.
// UUID is the idempotency key; the numeric ID may be reassigned across
// occurrences of a recurring series and must not be used as a key.
type MeetingRef struct {
	UUID      string    `json:"uuid"`
	ID        int64     `json:"id"`
	Topic     string    `json:"topic"`
	StartTime time.Time `json:"start_time"`

	// DurationSeconds is the meeting length. The upstream reports minutes;
	// the client normalizes to seconds on decode.
	DurationSeconds int `json:"duration_seconds"`

	// HostEmail identifies the meeting host. May be empty; the upstream does
	// not guarantee participant completeness.
	HostEmail string `json:"host_email"`
}

// RecordingFile is a single downloadable artifact attached to a recording.
type RecordingFile struct {
	ID          string `json:"id"`
	FileType    string `json:"file_type"`
	DownloadURL string `json:"download_url"`
}

// Recording is one listed cloud recording with its files.
type Recording struct {
	Ref   MeetingRef
	Files []RecordingFile
}

// TranscriptFile returns the recording's transcript file, if any.
func (r Recording) TranscriptFile() (RecordingFile, bool) {
	for _, f := range r.Files {
		if f.FileType == FileTypeTranscript {
			return f, true
		}
	}
	return RecordingFile{}, false
}

// SummarySection is one labeled section of an AI-generated meeting summary.
type SummarySection struct {
	Label   string `json:"label"`
	Summary string `json:"summary"`
}

// MeetingSummary is the structured AI-summary payload for one meeting.
type MeetingSummary struct {
	MeetingUUID string           `json:"meeting_uuid"`
	Title       string           `json:"summary_title"`
	Overview    string           `json:"summary_overview"`
	Details     []SummarySection `json:"summary_details"`
	NextSteps   []string         `json:"next_steps"`
}

// wire shapes

type recordingsPage struct {
	NextPageToken string          `json:"next_page_token"`
	Meetings      []wireRecording `json:"meetings"`
}

type wireRecording struct {
	UUID            string              `json:"uuid"`
	ID              int64               `json:"id"`
	Topic           string              `json:"topic"`
	StartTime       time.Time           `json:"start_time"`
	DurationMinutes int                 `json:"duration"`
	HostEmail       string              `json:"host_email"`
	RecordingFiles  []wireRecordingFile `json:"recording_files"`
}

type wireRecordingFile struct {
	ID          string `json:"id"`
	FileType    string `json:"file_type"`
	DownloadURL string `json:"download_url"`
}

func (m wireRecording) toRecording() Recording {
	files := make([]RecordingFile, 0, len(m.RecordingFiles))
	for _, f := range m.RecordingFiles {
		files = append(files, RecordingFile(f))
	}
	return Recording{
		Ref: MeetingRef{
			UUID:            m.UUID,
			ID:              m.ID,
			Topic:           m.Topic,
			StartTime:       m.StartTime,
			DurationSeconds: m.DurationMinutes * 60,
			HostEmail:       m.HostEmail,
		},
		Files: files,
	}
}

type reportPage struct {
	NextPageToken string              `json:"next_page_token"`
	Meetings      []wireReportMeeting `json:"meetings"`
}

type wireReportMeeting struct {
	UUID            string    `json:"uuid"`
	ID              int64     `json:"id"`
	Topic           string    `json:"topic"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration"`
	UserEmail       string    `json:"user_email"`
}

func (m wireReportMeeting) toRef() MeetingRef {
	return MeetingRef{
		UUID:            m.UUID,
		ID:              m.ID,
		Topic:           m.Topic,
		StartTime:       m.StartTime,
		DurationSeconds: m.DurationMinutes * 60,
		HostEmail:       m.UserEmail,
	}
}
