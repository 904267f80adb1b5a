package csvcodec

import (
	"errors"
	"math"
	"strings"
	"testing"

	"trafficsnap/internal/csvmap"
	"trafficsnap/internal/model"
)

const sampleExport = `Traffic source,Source type,Source title,Impressions,Impressions click-through rate (%),Views,Average view duration,Watch time (hours)
Total,,,1000,5.0,50,0:30,10
YT_RELATED.abc123,Content,My Video,800,6.25,40,0:25,8
`

func TestParse_SampleExport(t *testing.T) {
	res, err := Parse(sampleExport, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 video row, got %d", len(res.Rows))
	}
	row := res.Rows[0]
	if row.VideoID != "abc123" {
		t.Errorf("video id = %q, want abc123", row.VideoID)
	}
	if row.Views != 40 {
		t.Errorf("views = %d, want 40", row.Views)
	}
	if row.CTR != 6.25 {
		t.Errorf("ctr = %v, want 6.25", row.CTR)
	}
	if row.SourceTitle != "My Video" {
		t.Errorf("title = %q", row.SourceTitle)
	}

	if res.Total == nil {
		t.Fatal("expected total row")
	}
	if res.Total.Impressions != 1000 {
		t.Errorf("total impressions = %d, want 1000", res.Total.Impressions)
	}
	if !res.Total.IsTotal() {
		t.Error("total row should have no video id")
	}
}

func TestParse_GarbageLinesDropped(t *testing.T) {
	text := sampleExport +
		"EXT_URL.example.com,External,Some Site,5,1.0,2,0:10,0.1\n" +
		"SUBSCRIBER,Browse,,,0.5,9,0:12,0.4\n"

	res, err := Parse(text, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("garbage lines leaked into rows: %d", len(res.Rows))
	}
	if res.LinesDropped != 2 {
		t.Errorf("lines dropped = %d, want 2", res.LinesDropped)
	}
	for _, r := range res.Rows {
		if r.VideoID == "" {
			t.Error("non-total row without video id in result set")
		}
	}
}

func TestParse_QuotedCommaInTitle(t *testing.T) {
	text := "Traffic source,Source type,Source title,Impressions,Impressions click-through rate (%),Views,Average view duration,Watch time (hours)\n" +
		`YT_RELATED.q1,Content,"Drums, Bass, and ""More""",100,2.5,10,1:02:03,4.2` + "\n"

	res, err := Parse(text, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := res.Rows[0].SourceTitle; got != `Drums, Bass, and "More"` {
		t.Errorf("title = %q", got)
	}
	if res.Rows[0].AvgViewDuration != "1:02:03" {
		t.Errorf("avg duration = %q", res.Rows[0].AvgViewDuration)
	}
}

func TestParse_DuplicateTotalLastWins(t *testing.T) {
	text := sampleExport + "Total,,,2000,4.0,80,0:40,20\n"

	res, err := Parse(text, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Total.Impressions != 2000 {
		t.Errorf("total impressions = %d, want 2000 (last wins)", res.Total.Impressions)
	}
}

func TestParse_NumericCleaning(t *testing.T) {
	text := "Traffic source,Source type,Source title,Impressions,Impressions click-through rate (%),Views,Average view duration,Watch time (hours)\n" +
		`YT_RELATED.n1,Content,Clean,"1,234",5.5%,"2,000",0:15,3.5` + "\n"

	res, err := Parse(text, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	r := res.Rows[0]
	if r.Impressions != 1234 {
		t.Errorf("impressions = %d, want 1234", r.Impressions)
	}
	if r.CTR != 5.5 {
		t.Errorf("ctr = %v, want 5.5", r.CTR)
	}
	if r.Views != 2000 {
		t.Errorf("views = %d, want 2000", r.Views)
	}
}

func TestParse_TotalOnlyFailsNoVideoData(t *testing.T) {
	text := "Traffic source,Source type,Source title,Impressions,Impressions click-through rate (%),Views,Average view duration,Watch time (hours)\n" +
		"Total,,,1000,5.0,50,0:30,10\n"

	_, err := Parse(text, nil)
	if !errors.Is(err, ErrNoVideoData) {
		t.Fatalf("expected ErrNoVideoData, got %v", err)
	}
}

func TestParse_UnrecognizedHeaderNeedsMapping(t *testing.T) {
	text := strings.Replace(sampleExport, "Source title", "Video Name", 1)

	_, err := Parse(text, nil)
	if !errors.Is(err, csvmap.ErrMappingRequired) {
		t.Fatalf("expected ErrMappingRequired, got %v", err)
	}
}

func TestParse_UserMappingOverridesHeader(t *testing.T) {
	text := strings.Replace(sampleExport, "Source title", "Video Name", 1)

	user := model.NewColumnMapping()
	for i, col := range model.RequiredColumns {
		user.SetIndex(col, i)
	}

	res, err := Parse(text, user)
	if err != nil {
		t.Fatalf("Parse with user mapping: %v", err)
	}
	if res.Rows[0].SourceTitle != "My Video" {
		t.Errorf("title = %q", res.Rows[0].SourceTitle)
	}
}

func TestRoundTrip(t *testing.T) {
	rows := []model.TrafficRow{
		{VideoID: "vid1", SourceType: "Content", SourceTitle: `A "quoted", title`, Impressions: 123, CTR: 4.56, Views: 78, AvgViewDuration: "0:45", WatchTimeHours: 1.25, ChannelID: "UCchan1"},
		{VideoID: "vid2", SourceType: "Content", SourceTitle: "", Impressions: 0, CTR: 0, Views: 3, AvgViewDuration: "2:01", WatchTimeHours: 0.05},
	}
	total := &model.TrafficRow{Impressions: 500, CTR: 3.2, Views: 90, AvgViewDuration: "0:50", WatchTimeHours: 2.5}

	out := Serialize(rows, total)
	res, err := Parse(out, nil)
	if err != nil {
		t.Fatalf("Parse(Serialize(...)): %v", err)
	}

	if len(res.Rows) != len(rows) {
		t.Fatalf("row count = %d, want %d", len(res.Rows), len(rows))
	}
	for i, want := range rows {
		got := res.Rows[i]
		if got.VideoID != want.VideoID {
			t.Errorf("row %d: video id %q != %q", i, got.VideoID, want.VideoID)
		}
		if got.SourceTitle != want.SourceTitle {
			t.Errorf("row %d: title %q != %q", i, got.SourceTitle, want.SourceTitle)
		}
		if got.Impressions != want.Impressions || got.Views != want.Views {
			t.Errorf("row %d: counts differ: %+v vs %+v", i, got, want)
		}
		if math.Abs(got.CTR-want.CTR) > 1e-9 || math.Abs(got.WatchTimeHours-want.WatchTimeHours) > 1e-9 {
			t.Errorf("row %d: float fields differ", i)
		}
		if got.ChannelID != want.ChannelID {
			t.Errorf("row %d: channel id %q != %q", i, got.ChannelID, want.ChannelID)
		}
	}
	if res.Total == nil || res.Total.Impressions != 500 {
		t.Errorf("total did not survive round trip: %+v", res.Total)
	}
}

func TestSerialize_TotalFirstAndHeaderShape(t *testing.T) {
	rows := []model.TrafficRow{{VideoID: "v", SourceType: "Content", SourceTitle: "T", Views: 1, AvgViewDuration: "0:10"}}
	out := Serialize(rows, &model.TrafficRow{Impressions: 9, AvgViewDuration: "0:30"})

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "Traffic source,Source type,Source title,Impressions") {
		t.Errorf("header = %q", lines[0])
	}
	if strings.Contains(lines[0], "Channel ID") {
		t.Error("channel id column emitted with no channel data")
	}
	if !strings.HasPrefix(lines[1], "Total,,,") {
		t.Errorf("total row not first: %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "YT_RELATED.v,") {
		t.Errorf("video row = %q", lines[2])
	}
}

func TestParseWith_KeywordOverride(t *testing.T) {
	text := strings.Replace(sampleExport, "Source title", "Video Name", 1)

	if _, err := Parse(text, nil); !errors.Is(err, csvmap.ErrMappingRequired) {
		t.Fatalf("expected ErrMappingRequired with built-in keywords, got %v", err)
	}

	keywords := make(map[model.Column][]string, len(model.ColumnKeywords))
	for col, kws := range model.ColumnKeywords {
		keywords[col] = kws
	}
	keywords[model.ColSourceTitle] = append([]string{"video name"}, keywords[model.ColSourceTitle]...)

	res, err := ParseWith(text, nil, keywords)
	if err != nil {
		t.Fatalf("ParseWith: %v", err)
	}
	if res.Rows[0].SourceTitle != "My Video" {
		t.Errorf("title = %q, want My Video", res.Rows[0].SourceTitle)
	}
}
