package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceGroups maps config names to CDP resource types. Anything else is
// matched on the lowercased CDP name itself.
var resourceGroups = map[string]string{
	"image":      "images",
	"font":       "fonts",
	"media":      "media",
	"stylesheet": "stylesheets",
}

// blockResources aborts requests whose type is in types. Documents, scripts
// and XHR always pass: the form and its validation need them.
func blockResources(page *rod.Page, types []string) *rod.HijackRouter {
	blocked := make(map[string]bool, len(types))
	for _, t := range types {
		blocked[strings.ToLower(strings.TrimSpace(t))] = true
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if !shouldBlock(blocked, string(h.Request.Type())) {
			h.ContinueRequest(&proto.FetchContinueRequest{})
			return
		}
		h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
	})
	go router.Run()
	return router
}

func shouldBlock(blocked map[string]bool, resType string) bool {
	t := strings.ToLower(resType)
	switch t {
	case "document", "script", "xhr", "fetch":
		return false
	}
	if g, ok := resourceGroups[t]; ok {
		return blocked[g]
	}
	return blocked[t]
}
