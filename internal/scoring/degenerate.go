package scoring

import (
	"strings"
	"unicode/utf8"
)

// throwaway answers, matched exactly or as a substring repeated three times.
var throwaway = []string{
	"asdf", "qwer", "zxcv", "1234", "abcd", "test", "xxx", "...", "???",
	"idk", "dunno", "no idea", "don't know", "i don't know", "not sure", "whatever", "nothing",
	"不知道", "不会", "没有", "随便", "不清楚", "不太明白",
	"a", "b", "c", "d", "aa", "bb", "cc", "dd",
}

// IsDegenerate reports answers that are not worth evaluating: blank, shorter than five
// characters, a throwaway phrase, one character repeated, or a short unit repeated.
func IsDegenerate(answer string) bool {
	a := strings.ToLower(strings.TrimSpace(answer))
	if a == "" || utf8.RuneCountInString(a) < minAnswerLength {
		return true
	}

	for _, p := range throwaway {
		if a == p || strings.Contains(a, strings.Repeat(p, 3)) {
			return true
		}
	}

	return sameCharacter(a) || repeatedUnit(strings.ReplaceAll(a, " ", ""))
}

func sameCharacter(a string) bool {
	runes := []rune(a)
	for _, r := range runes[1:] {
		if r != runes[0] && r != ' ' {
			return false
		}
	}
	return len(runes) > 3
}

// repeatedUnit reports strings made of a unit of up to four characters repeated at
// least three times, such as "hahaha" or "ok ok ok".
func repeatedUnit(a string) bool {
	runes := []rune(a)
	for size := 1; size <= 4; size++ {
		if len(runes)%size != 0 || len(runes)/size < 3 {
			continue
		}
		unit := string(runes[:size])
		if strings.Repeat(unit, len(runes)/size) == a {
			return true
		}
	}
	return false
}
