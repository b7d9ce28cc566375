package domain

import "strings"

// SourcePlatform площадка, с которой пришел посетитель
type SourcePlatform string

const (
	SourceInstagram SourcePlatform = "Instagram"
	SourceThreads   SourcePlatform = "Threads"
	SourceFacebook  SourcePlatform = "Facebook"
	SourceTwitter   SourcePlatform = "X/Twitter"
	SourceDirect    SourcePlatform = "Direct"
)

// SourcePlatforms в порядке приоритета определения
var SourcePlatforms = []SourcePlatform{SourceInstagram, SourceThreads, SourceFacebook, SourceTwitter, SourceDirect}

// ParseSourcePlatform принимает только известные значения (без учета регистра)
func ParseSourcePlatform(s string) (SourcePlatform, bool) {
	for _, p := range SourcePlatforms {
		if strings.EqualFold(string(p), s) {
			return p, true
		}
	}
	return "", false
}

type sourceRule struct {
	platform SourcePlatform
	markers  []string
}

// in-app браузеры оставляют маркеры в User-Agent
var userAgentRules = []sourceRule{
	{SourceInstagram, []string{"Instagram"}},
	{SourceThreads, []string{"Threads", "Barcelona"}},
	{SourceFacebook, []string{"FBAN", "FBAV"}},
	{SourceTwitter, []string{"Twitter"}},
}

var referrerRules = []sourceRule{
	{SourceInstagram, []string{"instagram"}},
	{SourceThreads, []string{"threads"}},
	{SourceFacebook, []string{"facebook"}},
	{SourceTwitter, []string{"twitter", "x.com"}},
}

// DetectSourcePlatform определяет площадку сначала по User-Agent,
// затем по referrer, иначе Direct.
func DetectSourcePlatform(userAgent, referrer string) SourcePlatform {
	if p, ok := matchRules(userAgentRules, userAgent); ok {
		return p
	}
	if p, ok := matchRules(referrerRules, strings.ToLower(referrer)); ok {
		return p
	}
	return SourceDirect
}

func matchRules(rules []sourceRule, s string) (SourcePlatform, bool) {
	if s == "" {
		return "", false
	}
	for _, rule := range rules {
		for _, marker := range rule.markers {
			if strings.Contains(s, marker) {
				return rule.platform, true
			}
		}
	}
	return "", false
}
