package classtoken

import (
	"fmt"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/school"
)

const (
	tokenCharset   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	tokenRandomLen = 3
)

var randFunc = core.RandomString // mockable

// MakeToken builds the enrollment token string for a class and a
// per-class sequence number: a prefix derived from the class number,
// period number and year, then 3 random characters and the sequence
// number. e.g. T01E02-2025-XYZ1
func MakeToken(cls school.Class, number int) string {
	return fmt.Sprintf("%s-%s%d", makePrefix(cls), randFunc(tokenRandomLen, tokenCharset), number)
}

func makePrefix(cls school.Class) string {
	return fmt.Sprintf("T%02dE%02d-%d", cls.ClassNumber, cls.Period.PeriodNumber, cls.Period.Year)
}
