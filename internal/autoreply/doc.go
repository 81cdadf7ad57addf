// Package autoreply is the drafting orchestrator: it takes a classified
// guest message, assembles the knowledge bundle from the property profile,
// drafts a reply (LLM with few-shot retrieval, template, or generic
// fallback, in that order of preference), consults the auto-send gate, and
// either sends through the mailbox or files the draft for operator review.
package autoreply
