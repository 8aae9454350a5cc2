package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"meetinclick/backend/internal/models"
	"meetinclick/backend/internal/negotiation"
	"meetinclick/backend/internal/storage"
	apperr "meetinclick/backend/pkg/errors"
)

var errUsage = errors.New("usage")

func run(ctx context.Context, out io.Writer, ledger *negotiation.Ledger, negotiator *negotiation.Negotiator, args []string) error {
	switch args[0] {
	case "status":
		if len(args) != 3 {
			return errUsage
		}
		return showStatus(ctx, out, ledger, args[1], args[2])
	case "reset-request":
		if len(args) != 3 {
			return errUsage
		}
		if err := ledger.Reset(ctx, args[1], args[2]); err != nil {
			return err
		}
		fmt.Fprintf(out, "Request between %s and %s has been reset.\n", args[1], args[2])
		return nil
	case "budget":
		if len(args) != 3 {
			return errUsage
		}
		b, err := negotiator.RemainingBudget(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s in %s: used %d of %d, %d remaining\n", args[2], args[1], b.Used, b.Ceiling, b.Remaining)
		return nil
	case "show-conversation":
		if len(args) != 2 {
			return errUsage
		}
		return showConversation(ctx, out, negotiator, args[1])
	}
	return errUsage
}

func showStatus(ctx context.Context, out io.Writer, ledger *negotiation.Ledger, a, b string) error {
	req, err := ledger.Request(ctx, a, b)
	if errors.Is(err, apperr.ErrNoSuchRequest) {
		fmt.Fprintf(out, "No request between %s and %s.\n", a, b)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s -> %s: %s (created %s)\n", req.SenderID, req.RecipientID, req.Status, req.CreatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

// showConversation reads as one of the participants, which the id encodes.
func showConversation(ctx context.Context, out io.Writer, negotiator *negotiation.Negotiator, id string) error {
	a, _, ok := models.PairKey(id).Users()
	if !ok {
		return apperr.ErrNoSuchConversation
	}
	conv, err := negotiator.Conversation(ctx, id, a)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Conversation %s between %s and %s, %d messages\n", conv.ID, conv.User1, conv.User2, len(conv.Messages))
	for _, m := range conv.Messages {
		fmt.Fprintf(out, "  #%d %s %s: %s\n", m.Seq, m.SentAt.Format("15:04:05"), m.SenderID, m.Content)
	}
	return nil
}

func showUser(ctx context.Context, out io.Writer, users storage.UserDirectory, id string) error {
	u, err := users.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(u)
}
