package classifier

import "regexp"

// preferenceRule maps one explicit-statement pattern to the preference key
// it sets. A rule either captures the value from the message or pins it.
type preferenceRule struct {
	re    *regexp.Regexp
	key   string
	value string // fixed value; empty means take capture group 1
}

var preferenceRules = []preferenceRule{
	{re: regexp.MustCompile(`(?i)\bcall me ([A-Za-z][\w'-]{0,30})`), key: "name"},
	{re: regexp.MustCompile(`(?i)\bmy name is ([A-Za-z][\w'-]{0,30})`), key: "name"},
	{re: regexp.MustCompile(`(?i)\bi(?:'m| am) (?:a|an) ([a-z][a-z -]{2,40}?)(?:[.,!?;]|$)`), key: "role"},
	{re: regexp.MustCompile(`(?i)\b(?:keep it|keep things|make it|be) (?:short|brief|concise)\b`), key: "verbosity", value: "concise"},
	{re: regexp.MustCompile(`(?i)\bi prefer (?:short|brief|concise)\b`), key: "verbosity", value: "concise"},
	{re: regexp.MustCompile(`(?i)\b(?:more|i want|i prefer|give me) detail(?:s|ed)?\b`), key: "verbosity", value: "detailed"},
	{re: regexp.MustCompile(`(?i)\bbe (?:thorough|detailed|comprehensive)\b`), key: "verbosity", value: "detailed"},
	{re: regexp.MustCompile(`(?i)\b(?:i prefer|use|give me) bullet(?:s| points| lists)?\b`), key: "format", value: "structured"},
	{re: regexp.MustCompile(`(?i)\b(?:i prefer|use|write in) (?:prose|paragraphs|plain text)\b`), key: "format", value: "prose"},
	{re: regexp.MustCompile(`(?i)\bbe (?:more )?(?:formal|professional)\b`), key: "tone", value: "formal"},
	{re: regexp.MustCompile(`(?i)\bbe (?:more )?(?:casual|informal|chill)\b`), key: "tone", value: "casual"},
	{re: regexp.MustCompile(`(?i)\bi prefer ([^.!?\n]{2,60})`), key: "preference"},
	{re: regexp.MustCompile(`(?i)\b(?:please )?(?:always|never) ([^.!?\n]{2,60})`), key: "rule"},
}

var correctionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(?:no|nope|wrong)\b`),
	regexp.MustCompile(`(?i)^actually[, ]`),
	regexp.MustCompile(`(?i)\bthat(?:'s| is) (?:wrong|incorrect|not right|not what i)`),
	regexp.MustCompile(`(?i)\bnot what i (?:asked|meant|said)`),
	regexp.MustCompile(`(?i)\byou (?:misunderstood|got it wrong|missed the point)`),
}

var frustrationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:ugh|argh|ffs)\b`),
	regexp.MustCompile(`(?i)frustrat`),
	regexp.MustCompile(`(?i)\b(?:annoying|ridiculous|useless)\b`),
	regexp.MustCompile(`(?i)\bstill (?:doesn't|does not|not) work`),
	regexp.MustCompile(`(?i)\bwhy (?:is this so|won't this|does this keep)`),
}

var praisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bthanks?\b|\bthank you\b`),
	regexp.MustCompile(`(?i)\b(?:great|perfect|awesome|excellent|brilliant)\b`),
	regexp.MustCompile(`(?i)\b(?:exactly|spot on|well done|nailed it)\b`),
	regexp.MustCompile(`(?i)\bthat (?:worked|helped|was helpful)\b`),
	regexp.MustCompile(`(?i)\blove (?:it|this)\b`),
}

var goalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bmy goal is (?:to )?([^.!?\n]{3,120})`),
	regexp.MustCompile(`(?i)\bi(?:'m| am) trying to ([^.!?\n]{3,120})`),
	regexp.MustCompile(`(?i)\bi want to ([^.!?\n]{3,120})`),
	regexp.MustCompile(`(?i)\bi(?:'m| am) working on ([^.!?\n]{3,120})`),
	regexp.MustCompile(`(?i)\bwe(?:'re| are) (?:building|launching) ([^.!?\n]{3,120})`),
	regexp.MustCompile(`(?i)\bi(?:'m| am) hoping to ([^.!?\n]{3,120})`),
}

var decisionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bcan(?:'t|not) decide\b`),
	regexp.MustCompile(`(?i)\btorn between\b`),
	regexp.MustCompile(`(?i)\bshould i \b[^.!?\n]* or \b`),
	regexp.MustCompile(`(?i)\bnot sure (?:whether|if|which)\b`),
	regexp.MustCompile(`(?i)\bstill (?:deciding|debating|undecided)\b`),
	regexp.MustCompile(`(?i)\bon the fence\b`),
	regexp.MustCompile(`(?i)\bweighing (?:my )?options\b`),
}

var deferralPattern = regexp.MustCompile(`(?i)\b(?:later|eventually|someday|some other time|not (?:right )?now|put (?:it|that) off)\b`)

var casualMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:hey|yeah|yep|nah|gonna|wanna|kinda|lol|btw|thx|np|cool)\b`),
	regexp.MustCompile(`(?i)\bhaha`),
}

var formalMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:furthermore|nevertheless|regarding|kindly|per our|pursuant)\b`),
	regexp.MustCompile(`(?i)\b(?:could you please|would you kindly|i would appreciate)\b`),
	regexp.MustCompile(`(?i)^dear\b`),
}

var connectivePattern = regexp.MustCompile(`(?i)\b(?:because|given that|assuming|trade-?offs?|versus|vs\.?|implications?|compared to)\b`)

var codeFencePattern = regexp.MustCompile("```|`[^`\n]+`")

var bulletPattern = regexp.MustCompile(`(?m)^\s*(?:[-*•]|\d+[.)])\s+`)

// technicalTerms is a coarse vocabulary for gauging how technical a
// question is. Counting hits is enough; this is a weak signal by design.
var technicalTerms = []string{
	"algorithm", "api", "architecture", "async", "authentication", "backend",
	"benchmark", "cache", "compiler", "concurrency", "container", "database",
	"deadlock", "dependency", "deployment", "encryption", "endpoint",
	"frontend", "goroutine", "grpc", "http", "index", "kubernetes", "latency",
	"middleware", "migration", "mutex", "namespace", "orchestration",
	"pipeline", "protocol", "query", "queue", "refactor", "regression",
	"replica", "runtime", "schema", "serialization", "shard", "sql", "thread",
	"throughput", "timeout", "tls", "transaction", "websocket",
}

// stopwords excluded from topic extraction.
var stopwords = map[string]bool{
	"a": true, "about": true, "after": true, "all": true, "also": true,
	"an": true, "and": true, "any": true, "are": true, "as": true, "at": true,
	"be": true, "been": true, "before": true, "but": true, "by": true,
	"can": true, "could": true, "did": true, "do": true, "does": true,
	"doing": true, "down": true, "for": true, "from": true, "get": true,
	"got": true, "had": true, "has": true, "have": true, "here": true,
	"how": true, "i": true, "if": true, "in": true, "into": true, "is": true,
	"it": true, "its": true, "just": true, "like": true, "make": true,
	"me": true, "more": true, "most": true, "my": true, "need": true,
	"no": true, "not": true, "now": true, "of": true, "on": true, "one": true,
	"only": true, "or": true, "other": true, "our": true, "out": true,
	"over": true, "please": true, "should": true, "so": true, "some": true,
	"than": true, "that": true, "the": true, "their": true, "them": true,
	"then": true, "there": true, "these": true, "they": true, "this": true,
	"to": true, "up": true, "us": true, "use": true, "very": true,
	"want": true, "was": true, "we": true, "were": true, "what": true,
	"when": true, "where": true, "which": true, "while": true, "who": true,
	"why": true, "will": true, "with": true, "would": true, "you": true,
	"your": true,
}
