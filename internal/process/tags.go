package process

import (
	"regexp"
	"strings"
)

type tagRule struct {
	tag     string
	pattern *regexp.Regexp
}

// tagRules is checked in order; the order decides which tags survive when a
// client shows only the first few.
var tagRules = []tagRule{
	{"Layoffs", regexp.MustCompile(`\blay(?:s|ing)?[ -]?offs?\b|\blaid[ -]off\b|\bjob cuts?\b|\bcut(?:s|ting)? [\d,]+ jobs\b|\bredundanc|\bdownsiz|\bworkforce reduction`)},
	{"AI", regexp.MustCompile(`\bai\b|\bartificial intelligence\b|\bchatgpt\b|\bmachine learning\b|\bllms?\b`)},
	{"Automation", regexp.MustCompile(`\bautomat(?:ion|ed|es|e|ing)\b|\brobot`)},
	{"Unemployment", regexp.MustCompile(`\bunemploy|\bjobless`)},
	{"Hiring Freeze", regexp.MustCompile(`\bhiring (?:freeze|pause)|\bfreez(?:e|es|ing) (?:on )?hiring`)},
	{"Resume Writing", regexp.MustCompile(`\bresumes?\b|\brésumé|\bcv\b|\bcover letters?\b|\bats\b`)},
	{"Job Search", regexp.MustCompile(`\bjob (?:search|hunt|seeker|board)|\bfind(?:ing)? a (?:new )?job`)},
	{"Interview Tips", regexp.MustCompile(`\binterview`)},
	{"Career Advice", regexp.MustCompile(`\bcareer`)},
}

// Tags returns every topical tag whose phrases occur in title or snippet,
// in vocabulary order. The result is never nil.
func Tags(title, snippet string) []string {
	text := strings.ToLower(title + " " + snippet)
	tags := []string{}
	for _, rule := range tagRules {
		if rule.pattern.MatchString(text) {
			tags = append(tags, rule.tag)
		}
	}
	return tags
}
