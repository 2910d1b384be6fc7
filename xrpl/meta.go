package xrpl

import "sort"

// MetaNode is one entry of a transaction metadata's AffectedNodes array.
type MetaNode struct {
	Kind           string // "CreatedNode", "ModifiedNode" or "DeletedNode"
	EntryType      string
	NewFields      map[string]any
	FinalFields    map[string]any
	PreviousFields map[string]any
	Fields         map[string]any // the node body itself
}

const (
	NodeCreated  = "CreatedNode"
	NodeModified = "ModifiedNode"
	NodeDeleted  = "DeletedNode"
)

// AffectedNodes decodes the metadata's AffectedNodes array.
func (t *TransactionAndMetadata) AffectedNodes() []MetaNode {
	raw, ok := t.Metadata["AffectedNodes"].([]any)
	if !ok {
		return nil
	}
	nodes := make([]MetaNode, 0, len(raw))
	for _, entry := range raw {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		for _, kind := range []string{NodeCreated, NodeModified, NodeDeleted} {
			body, ok := obj[kind].(map[string]any)
			if !ok {
				continue
			}
			node := MetaNode{Kind: kind, Fields: body}
			node.EntryType, _ = body["LedgerEntryType"].(string)
			node.NewFields, _ = body["NewFields"].(map[string]any)
			node.FinalFields, _ = body["FinalFields"].(map[string]any)
			node.PreviousFields, _ = body["PreviousFields"].(map[string]any)
			nodes = append(nodes, node)
		}
	}
	return nodes
}

// accountFields are the metadata keys whose values name an account
// affected by the transaction.
var accountFields = []string{"Account", "Owner", "Destination", "RegularKey"}

// AffectedAccounts derives the set of accounts whose ledger entries the
// transaction touched: account-valued fields anywhere in the metadata,
// plus the issuers of any amounts that moved. Sorted, deduplicated.
func (t *TransactionAndMetadata) AffectedAccounts() []string {
	seen := map[string]bool{}
	collectAccounts(t.Metadata, seen)
	accounts := make([]string, 0, len(seen))
	for a := range seen {
		accounts = append(accounts, a)
	}
	sort.Strings(accounts)
	return accounts
}

func collectAccounts(v any, seen map[string]bool) {
	switch val := v.(type) {
	case map[string]any:
		for _, field := range accountFields {
			if s, ok := val[field].(string); ok && s != "" {
				seen[s] = true
			}
		}
		if issuer, ok := val["issuer"].(string); ok && issuer != "" {
			seen[issuer] = true
		}
		for _, child := range val {
			collectAccounts(child, seen)
		}
	case []any:
		for _, child := range val {
			collectAccounts(child, seen)
		}
	}
}

// Books returns the order books touched by the transaction: each distinct
// book named by an Offer node in the metadata, once.
func (t *TransactionAndMetadata) Books() []Book {
	var books []Book
	seen := map[string]bool{}
	for _, node := range t.AffectedNodes() {
		if node.EntryType != "Offer" {
			continue
		}
		fields := node.FinalFields
		if fields == nil {
			fields = node.NewFields
		}
		if fields == nil {
			continue
		}
		gets, errG := ParseAmount(fields["TakerGets"])
		pays, errP := ParseAmount(fields["TakerPays"])
		if errG != nil || errP != nil {
			continue
		}
		book := Book{Gets: gets.Issue, Pays: pays.Issue}
		if key := book.Key(); !seen[key] {
			seen[key] = true
			books = append(books, book)
		}
	}
	return books
}
