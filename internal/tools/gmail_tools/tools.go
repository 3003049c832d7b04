// Package gmail_tools contributes the Gmail tools to the registry.
package gmail_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/workspace-mcp/internal/tools"
)

// Register adds the Gmail tools to the registry.
func Register(reg *tools.Registry) {
	searchTool := mcp.NewTool("gmail_search",
		mcp.WithDescription("Search for emails in Gmail using Gmail search operators. Returns email metadata including subject, sender, and date. Use Gmail search syntax like \"from:john@example.com\", \"subject:meeting\", \"has:attachment\", \"newer_than:1d\""),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Gmail search query using Gmail operators. Examples: \"from:boss@company.com subject:report\", \"has:attachment newer_than:7d\", \"label:important is:unread\""),
		),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of emails to return (1-100, default: 10)"),
		),
	)
	reg.Register(searchTool, handleSearch)

	sendTool := mcp.NewTool("gmail_send",
		mcp.WithDescription("Send a new email via Gmail. The email will be sent from the authenticated Gmail account. Supports plain text emails."),
		mcp.WithString("to",
			mcp.Required(),
			mcp.Description("Recipient email address. Can be a single email or multiple emails separated by commas."),
		),
		mcp.WithString("subject",
			mcp.Required(),
			mcp.Description("Email subject line"),
		),
		mcp.WithString("body",
			mcp.Required(),
			mcp.Description("Email body content in plain text"),
		),
	)
	reg.Register(sendTool, handleSend)

	readTool := mcp.NewTool("gmail_read",
		mcp.WithDescription("Read the full content of a specific email by its Gmail message ID. Returns the complete email including headers, body text, and metadata. Use this after searching emails to get the full content."),
		mcp.WithString("messageId",
			mcp.Required(),
			mcp.Description("The Gmail message ID obtained from gmail_search results. This is the unique identifier for the email."),
		),
	)
	reg.Register(readTool, handleRead)
}

func handleSearch(ctx context.Context, caps *tools.Capabilities, args map[string]any) (any, error) {
	query, err := tools.RequireString(args, "query")
	if err != nil {
		return nil, err
	}
	maxResults := tools.IntArg(args, "maxResults", 10)

	return caps.Gmail.Search(ctx, query, maxResults)
}

func handleSend(ctx context.Context, caps *tools.Capabilities, args map[string]any) (any, error) {
	to, err := tools.RequireString(args, "to")
	if err != nil {
		return nil, err
	}
	subject, err := tools.RequireString(args, "subject")
	if err != nil {
		return nil, err
	}
	body, err := tools.RequireString(args, "body")
	if err != nil {
		return nil, err
	}

	return caps.Gmail.Send(ctx, to, subject, body)
}

func handleRead(ctx context.Context, caps *tools.Capabilities, args map[string]any) (any, error) {
	messageID, err := tools.RequireString(args, "messageId")
	if err != nil {
		return nil, err
	}

	return caps.Gmail.Read(ctx, messageID)
}
