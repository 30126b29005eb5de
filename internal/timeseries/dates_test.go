package timeseries

import (
	"testing"
	"time"
)

func TestParseRangeWeekly(t *testing.T) {
	dates, err := ParseRange("2024-01-01", "2024-01-29", 7)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"2024-01-01", "2024-01-08", "2024-01-15", "2024-01-22", "2024-01-29"}
	if len(dates) != len(want) {
		t.Fatalf("got %d dates, want %d", len(dates), len(want))
	}
	for i, d := range dates {
		if d.Format("2006-01-02") != want[i] {
			t.Fatalf("dates[%d] = %s, want %s", i, d.Format("2006-01-02"), want[i])
		}
	}
}

func TestParseRangeSingleDay(t *testing.T) {
	dates, err := ParseRange("2024-03-05", "2024-03-05", 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(dates) != 1 {
		t.Fatalf("got %d dates, want 1", len(dates))
	}
}

func TestParseRangeBadInput(t *testing.T) {
	if _, err := ParseRange("2024/01/01", "2024-02-01", 7); err == nil {
		t.Fatal("expected error for bad start date")
	}
	dates, err := ParseRange("2024-02-01", "2024-01-01", 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(dates) != 0 {
		t.Fatalf("end before start should yield no dates, got %d", len(dates))
	}
}

func TestGroupByYear(t *testing.T) {
	dates, err := ParseRange("2023-12-18", "2024-01-08", 7)
	if err != nil {
		t.Fatal(err)
	}
	groups := GroupByYear(dates)
	if len(groups[2023]) != 2 || len(groups[2024]) != 2 {
		t.Fatalf("GroupByYear split = 2023:%d 2024:%d, want 2 and 2",
			len(groups[2023]), len(groups[2024]))
	}
}

func TestDaysSinceEpoch(t *testing.T) {
	if got := DaysSinceEpoch(time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)); got != 0 {
		t.Fatalf("epoch = %d, want 0", got)
	}
	if got := DaysSinceEpoch(time.Date(1970, 1, 11, 0, 0, 0, 0, time.UTC)); got != 10 {
		t.Fatalf("1970-01-11 = %d, want 10", got)
	}
}
