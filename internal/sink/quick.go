package sink

import "strings"

// QuickClass is the coarse pre-submission classification. It exists only to
// tag sink submissions cheaply; the durable classifier in internal/classify
// has different precision requirements and the two are kept separate on
// purpose.
type QuickClass struct {
	Category string
	Urgency  string
}

type quickRule struct {
	substrings []string
	category   string
	urgency    string
}

// quickRules is evaluated in order, first substring hit wins.
var quickRules = []quickRule{
	{substrings: []string{"out of memory", "panic", "fatal", "segfault"}, category: "crash", urgency: "high"},
	{substrings: []string{"timeout", "econnrefused", "econnreset", "socket hang up"}, category: "connectivity", urgency: "medium"},
	{substrings: []string{"unhandled", "exception", "undefined is not", "null pointer"}, category: "runtime", urgency: "medium"},
	{substrings: []string{"deprecat", "warning"}, category: "hygiene", urgency: "low"},
}

// noiseDenylist drops known-noisy browser and bundler messages before they
// reach the sink.
var noiseDenylist = []string{
	"script error",
	"chunkloaderror",
	"loading chunk",
	"network request failed",
	"networkerror when attempting to fetch resource",
}

// QuickClassify returns the coarse category for a message.
func QuickClassify(message string) QuickClass {
	normalized := strings.ToLower(message)
	for _, rule := range quickRules {
		for _, sub := range rule.substrings {
			if strings.Contains(normalized, sub) {
				return QuickClass{Category: rule.category, Urgency: rule.urgency}
			}
		}
	}
	return QuickClass{Category: "general", Urgency: "low"}
}

// Denied reports whether a message matches the noise denylist.
func Denied(message string) bool {
	normalized := strings.ToLower(message)
	for _, noisy := range noiseDenylist {
		if strings.Contains(normalized, noisy) {
			return true
		}
	}
	return false
}
