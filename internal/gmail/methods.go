package gmail

import (
	"gmaild/internal/backend"
	"gmaild/internal/service"
)

const defaultLimit = 10

func limitParam() service.ParamInfo {
	return service.ParamInfo{Name: "limit", Type: backend.TypeInteger, Default: defaultLimit, Description: "Maximum number of messages"}
}

// Methods returns the Gmail method table in declaration order.
func Methods() []service.MethodInfo {
	return []service.MethodInfo{
		{
			Name:        "gmail.inbox",
			Description: "List recent inbox emails",
			Params:      []service.ParamInfo{limitParam()},
		},
		{
			Name:        "gmail.unread",
			Description: "Get accurate unread count and summaries",
			Params:      []service.ParamInfo{limitParam()},
		},
		{
			Name:        "gmail.search",
			Description: "Search emails by query",
			Params: []service.ParamInfo{
				{Name: "query", Type: backend.TypeString, Required: true, Description: "Gmail search query"},
				limitParam(),
			},
		},
		{
			Name:        "gmail.read",
			Description: "Read full email with body and attachment info",
			Params: []service.ParamInfo{
				{Name: "message_id", Type: backend.TypeString, Required: true},
			},
		},
		{
			Name:        "gmail.send",
			Description: "Send an email with optional attachments",
			Params: []service.ParamInfo{
				{Name: "to", Type: backend.TypeString, Required: true},
				{Name: "subject", Type: backend.TypeString, Required: true},
				{Name: "body", Type: backend.TypeString, Required: true},
				{Name: "cc", Type: backend.TypeString},
				{Name: "bcc", Type: backend.TypeString},
				{Name: "attachments", Type: backend.TypeArray, Description: "List of {filename, data (base64)} or {path}"},
			},
		},
		{
			Name:        "gmail.download_attachment",
			Description: "Download an attachment from an email",
			Params: []service.ParamInfo{
				{Name: "message_id", Type: backend.TypeString, Required: true},
				{Name: "attachment_id", Type: backend.TypeString, Required: true},
				{Name: "save_path", Type: backend.TypeString, Description: "Path to save file (returns base64 if not specified)"},
			},
		},
		{
			Name:        "gmail.thread",
			Description: "Get email thread by ID",
			Params: []service.ParamInfo{
				{Name: "thread_id", Type: backend.TypeString, Required: true},
			},
		},
	}
}

// Commands binds methods to gmail-cli verbs for cold execution. The CLI has
// no read or download-attachment verb, so those methods are warm-only, and its
// send verb takes no cc, bcc or attachment options.
func Commands() backend.CommandTable {
	limit := backend.Arg{Param: "limit", Flag: "--limit"}
	return backend.CommandTable{
		"gmail.inbox":  {Verb: "inbox", Args: []backend.Arg{limit}},
		"gmail.unread": {Verb: "unread"},
		"gmail.search": {Verb: "search", Args: []backend.Arg{{Param: "query"}, limit}},
		"gmail.send": {
			Verb:        "send",
			Args:        []backend.Arg{{Param: "to"}, {Param: "subject"}, {Param: "body"}},
			Unsupported: []string{"cc", "bcc", "attachments"},
		},
		"gmail.thread": {Verb: "thread", Args: []backend.Arg{{Param: "thread_id"}}},
	}
}
