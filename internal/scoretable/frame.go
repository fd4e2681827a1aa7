package scoretable

// Frame is a generic tabular source with a composite row key.
// CSV 파일, Postgres 조회 결과 모두 Frame으로 변환 후 Load
type Frame struct {
	Source     string   // 로그/에러용 원본 이름
	IndexNames []string // 기대값: [date, instrument]
	Columns    []string
	Rows       []Row
}

// Row is one record: key parts plus values aligned with Frame.Columns
type Row struct {
	Index  []string
	Values []string
}

// columnIndex returns the position of name in Columns, or -1
func (f *Frame) columnIndex(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}
