package date

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/On-Jun9/phockup/pkg/types"
)

var defaultFields = []string{"SubSecCreateDate", "SubSecDateTimeOriginal", "CreateDate", "DateTimeOriginal"}

// newResolver는 테스트 코드 동작을 검증하거나 보조합니다.
func newResolver() *Resolver {
	return NewResolver(Options{Fields: defaultFields, TimezoneTag: "TimeZone"})
}

// assertDate는 테스트 코드 동작을 검증하거나 보조합니다.
func assertDate(t *testing.T, got *types.ResolvedDate, want time.Time, subseconds string) {
	t.Helper()
	if got == nil {
		t.Fatalf("expected date %v, got nil", want)
	}
	if !got.Timestamp.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got.Timestamp)
	}
	if got.Subseconds != subseconds {
		t.Fatalf("expected subseconds %q, got %q", subseconds, got.Subseconds)
	}
}

// TestParseDateString_Layouts는 테스트 코드 동작을 검증하거나 보조합니다.
func TestParseDateString_Layouts(t *testing.T) {
	// 두 가지 레이아웃 모두 초 단위까지 정확히 파싱되고 소수부는 그대로 보존되어야 한다.
	want := time.Date(2017, 1, 1, 1, 1, 1, 0, time.UTC)

	tests := []struct {
		value      string
		subseconds string
	}{
		{"2017:01:01 01:01:01", ""},
		{"2017-01-01 01:01:01", ""},
		{"2017:01:01 01:01:01.20", "20"},
		{"2017:01:01 01:01:01.007", "007"},
		{"2017:01:01 01:01:01+02:00", ""},
		{"2017:01:01 01:01:01.20-05:00", "20"},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, ok := ParseDateString(tt.value)
			if !ok {
				t.Fatalf("failed to parse %q", tt.value)
			}
			assertDate(t, got, want, tt.subseconds)
		})
	}
}

// TestParseDateString_Invalid는 테스트 코드 동작을 검증하거나 보조합니다.
func TestParseDateString_Invalid(t *testing.T) {
	for _, value := range []string{"", "not a date", "2017/01/01 01:01:01", "2017:13:01 01:01:01"} {
		if _, ok := ParseDateString(value); ok {
			t.Fatalf("expected parse failure for %q", value)
		}
	}
}

// TestResolver_FromTags_FirstUsableField는 테스트 코드 동작을 검증하거나 보조합니다.
func TestResolver_FromTags_FirstUsableField(t *testing.T) {
	// 0000으로 시작하는 값과 문자열이 아닌 값은 건너뛰어야 한다.
	tags := types.Tags{
		"SubSecCreateDate":       "0000:00:00 00:00:00",
		"SubSecDateTimeOriginal": float64(20170101),
		"CreateDate":             "2017:01:01 01:01:01",
		"DateTimeOriginal":       "2018:02:02 02:02:02",
	}

	got := newResolver().Resolve("", tags)
	assertDate(t, got, time.Date(2017, 1, 1, 1, 1, 1, 0, time.UTC), "")
}

// TestResolver_FromTags_PrefersOffsetBearingValue는 테스트 코드 동작을 검증하거나 보조합니다.
func TestResolver_FromTags_PrefersOffsetBearingValue(t *testing.T) {
	// 오프셋이 없는 후보를 찾은 뒤에도 계속 탐색해서 오프셋이 있는 값을 우선해야 한다.
	tags := types.Tags{
		"CreateDate":       "2017:01:01 01:01:01",
		"DateTimeOriginal": "2017:06:06 06:06:06+09:00",
		"TimeZone":         "+02:00",
	}

	got := newResolver().Resolve("", tags)
	assertDate(t, got, time.Date(2017, 6, 6, 6, 6, 6, 0, time.UTC), "")
}

// TestResolver_FromTags_StopsAtFirstOffsetValue는 테스트 코드 동작을 검증하거나 보조합니다.
func TestResolver_FromTags_StopsAtFirstOffsetValue(t *testing.T) {
	tags := types.Tags{
		"SubSecCreateDate": "2017:01:01 01:01:01.50+01:00",
		"CreateDate":       "2018:01:01 01:01:01+03:00",
	}

	got := newResolver().Resolve("", tags)
	assertDate(t, got, time.Date(2017, 1, 1, 1, 1, 1, 0, time.UTC), "50")
}

// TestResolver_FromTags_AppliesTimezoneTag는 테스트 코드 동작을 검증하거나 보조합니다.
func TestResolver_FromTags_AppliesTimezoneTag(t *testing.T) {
	// 날짜 문자열에 오프셋이 없을 때만 별도 TimeZone 태그 값을 더해야 한다.
	tests := []struct {
		name string
		zone any
		want time.Time
	}{
		{"positive", "02:30", time.Date(2017, 1, 1, 3, 31, 1, 0, time.UTC)},
		{"signed positive", "+01:00", time.Date(2017, 1, 1, 2, 1, 1, 0, time.UTC)},
		{"negative", "-05:00", time.Date(2016, 12, 31, 20, 1, 1, 0, time.UTC)},
		{"malformed", "2h", time.Date(2017, 1, 1, 1, 1, 1, 0, time.UTC)},
		{"numeric", float64(2), time.Date(2017, 1, 1, 1, 1, 1, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tags := types.Tags{"CreateDate": "2017:01:01 01:01:01", "TimeZone": tt.zone}
			got := newResolver().Resolve("", tags)
			assertDate(t, got, tt.want, "")
		})
	}
}

// TestResolver_FromTags_IgnoresTimezoneWhenOffsetPresent는 테스트 코드 동작을 검증하거나 보조합니다.
func TestResolver_FromTags_IgnoresTimezoneWhenOffsetPresent(t *testing.T) {
	tags := types.Tags{"CreateDate": "2017:01:01 01:01:01+02:00", "TimeZone": "05:00"}
	got := newResolver().Resolve("", tags)
	assertDate(t, got, time.Date(2017, 1, 1, 1, 1, 1, 0, time.UTC), "")
}

// TestResolver_PathlessStreamStopsAfterTags는 테스트 코드 동작을 검증하거나 보조합니다.
func TestResolver_PathlessStreamStopsAfterTags(t *testing.T) {
	// 경로가 없으면 파일명/타임스탬프 단계는 시도하지 않아야 한다.
	r := NewResolver(Options{Fields: defaultFields, Timestamp: true})
	if got := r.Resolve("", types.Tags{"CreateDate": "0000:00:00 00:00:00"}); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

// TestResolver_FallsBackToFilename는 테스트 코드 동작을 검증하거나 보조합니다.
func TestResolver_FallsBackToFilename(t *testing.T) {
	// 태그로 날짜를 얻지 못하면 기본 정규식으로 파일명에서 추출해야 한다.
	tags := types.Tags{"MIMEType": "image/jpeg", "CreateDate": "garbage"}

	got := newResolver().Resolve("/in/IMG_20170101_010101.jpg", tags)
	assertDate(t, got, time.Date(2017, 1, 1, 1, 1, 1, 0, time.UTC), "")

	got = newResolver().Resolve("/in/date_20170101_010101.jpg", nil)
	assertDate(t, got, time.Date(2017, 1, 1, 1, 1, 1, 0, time.UTC), "")
}

// TestFromFilename_CustomRegex는 테스트 코드 동작을 검증하거나 보조합니다.
func TestFromFilename_CustomRegex(t *testing.T) {
	// 선택적 시간 그룹이 비어 있으면 0으로, 필수 그룹이 없으면 실패해야 한다.
	withTime := regexp.MustCompile(`(?P<day>\d{2})\.(?P<month>\d{2})\.(?P<year>\d{4})[_-]?((?P<hour>\d{2})\.(?P<minute>\d{2})\.(?P<second>\d{2}))?`)

	got := FromFilename("IMG_27.01.2015-19.20.00.jpg", withTime)
	assertDate(t, got, time.Date(2015, 1, 27, 19, 20, 0, 0, time.UTC), "")

	got = FromFilename("IMG_27.01.2015.jpg", withTime)
	assertDate(t, got, time.Date(2015, 1, 27, 0, 0, 0, 0, time.UTC), "")

	dateOnly := regexp.MustCompile(`(?P<year>\d{4})(?P<month>\d{2})(?P<day>\d{2})`)
	got = FromFilename("scan20150127.png", dateOnly)
	assertDate(t, got, time.Date(2015, 1, 27, 0, 0, 0, 0, time.UTC), "")

	noDay := regexp.MustCompile(`(?P<year>\d{4})(?P<month>\d{2})`)
	if got := FromFilename("scan201501.png", noDay); got != nil {
		t.Fatalf("expected failure without day group, got %+v", got)
	}
}

// TestFromFilename_OutOfRange는 테스트 코드 동작을 검증하거나 보조합니다.
func TestFromFilename_OutOfRange(t *testing.T) {
	// 범위를 벗어난 값은 패닉 없이 실패로 처리되어야 한다.
	for _, name := range []string{
		"IMG_20171301_010101.jpg",
		"IMG_20170230_010101.jpg",
		"IMG_20170101_250101.jpg",
		"IMG_20170101_016001.jpg",
		"IMG_00000101_010101.jpg",
		"no-date-here.jpg",
	} {
		if got := FromFilename(name, nil); got != nil {
			t.Fatalf("expected nil for %s, got %+v", name, got)
		}
	}
}

// TestResolver_TimestampFallback는 테스트 코드 동작을 검증하거나 보조합니다.
func TestResolver_TimestampFallback(t *testing.T) {
	// 파일명에서도 실패하면 옵션이 켜진 경우에만 수정 시간을 사용해야 한다.
	path := filepath.Join(t.TempDir(), "scan.jpg")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Date(2016, 9, 15, 12, 34, 56, 0, time.Local)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	if got := newResolver().Resolve(path, nil); got != nil {
		t.Fatalf("expected unknown date without timestamp fallback, got %+v", got)
	}

	r := NewResolver(Options{Fields: defaultFields, Timestamp: true})
	got := r.Resolve(path, nil)
	assertDate(t, got, mtime, "")
}

// TestFromTimestamp_MissingFile는 테스트 코드 동작을 검증하거나 보조합니다.
func TestFromTimestamp_MissingFile(t *testing.T) {
	if _, err := FromTimestamp(filepath.Join(t.TempDir(), "missing.jpg")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
