package job

import "fmt"

// Action types executed in-process against a page handle.
var browserActionTypes = []string{
	"navigate", "scrape", "click", "type", "screenshot",
	"pdf", "wait", "evaluate", "scroll", "select",
}

// Action types forwarded to the remote extraction sidecar. "wait" and
// "screenshot" exist on both lanes and are listed under the remote lane's
// registry as well, but they do not force a job onto it: only the types
// below, which no browser handler can execute, decide routing.
var remoteActionTypes = []string{
	"crawl", "extract", "generateSchema", "verify", "crawlLinks",
	"wait", "filter", "screenshot", "extractPDF", "toMarkdown", "toPDF",
}

var remoteOnly = map[string]struct{}{
	"crawl":          {},
	"extract":        {},
	"generateSchema": {},
	"verify":         {},
	"crawlLinks":     {},
	"filter":         {},
	"extractPDF":     {},
	"toMarkdown":     {},
	"toPDF":          {},
}

var knownTypes = func() map[string]struct{} {
	m := make(map[string]struct{})
	for _, t := range browserActionTypes {
		m[t] = struct{}{}
	}
	for _, t := range remoteActionTypes {
		m[t] = struct{}{}
	}
	return m
}()

// ActionTypes enumerates the action types a lane's handler registry must
// cover. Registries are checked against this at startup.
func ActionTypes(lane Lane) []string {
	if lane == LaneRemote {
		return remoteActionTypes
	}
	return browserActionTypes
}

// Classify decides which lane owns a job. A single remote-only action type
// routes the entire job to the remote lane; mixed jobs are never split.
func Classify(actions []Action) (Lane, error) {
	for _, a := range actions {
		if _, ok := knownTypes[a.Type]; !ok {
			return "", fmt.Errorf("unrecognized action type %q", a.Type)
		}
	}
	for _, a := range actions {
		if _, ok := remoteOnly[a.Type]; ok {
			return LaneRemote, nil
		}
	}
	return LaneBrowser, nil
}
