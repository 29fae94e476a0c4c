// Package support stores customer support tickets.
package support

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"slices"
	"strings"
	"time"

	"anarchy.ttfm/storefront/utils"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

var ErrInvalidTicket = errors.New("invalid ticket")

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Validate() (err error) {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return nil
	default:
		return fmt.Errorf("%w: priority %q", ErrInvalidTicket, p)
	}
}

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

var ticketsPrefix = []byte("/tickets/")

func TicketKey(id uuid.UUID) (key []byte) {
	return []byte(fmt.Sprintf("/tickets/%s", id))
}

type (
	Create struct {
		Name    string
		Email   string
		Subject string
		Message string
		// Defaults to medium
		Priority Priority
	}
	Ticket struct {
		Id        uuid.UUID
		Name      string
		Email     string
		Subject   string
		Message   string
		Priority  Priority
		Status    Status
		CreatedAt time.Time
	}
)

func (c *Create) Validate() (err error) {
	for field, value := range map[string]string{"name": c.Name, "email": c.Email, "subject": c.Subject, "message": c.Message} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: missing %s", ErrInvalidTicket, field)
		}
	}
	if _, err = mail.ParseAddress(c.Email); err != nil {
		return fmt.Errorf("%w: email: %w", ErrInvalidTicket, err)
	}
	if c.Priority == "" {
		c.Priority = PriorityMedium
	}
	return c.Priority.Validate()
}

func (t *Ticket) Bytes() (bytes []byte) {
	bytes, _ = json.Marshal(t)
	return bytes
}

func (t *Ticket) FromBytes(b []byte) (err error) {
	return json.Unmarshal(b, t)
}

type Config struct {
	DB  *badger.DB
	Now func() time.Time
}

// Desk keeps tickets under /tickets/<id>
type Desk struct {
	db  *badger.DB
	now func() time.Time
}

func New(config Config) (d *Desk) {
	d = &Desk{db: config.DB, now: config.Now}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

func (d *Desk) Create(ctx context.Context, req Create) (ticket Ticket, err error) {
	err = req.Validate()
	if err != nil {
		return ticket, err
	}
	if err = ctx.Err(); err != nil {
		return ticket, err
	}

	ticket = Ticket{
		Id:        uuid.New(),
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.TrimSpace(req.Email),
		Subject:   strings.TrimSpace(req.Subject),
		Message:   req.Message,
		Priority:  req.Priority,
		Status:    StatusOpen,
		CreatedAt: d.now().UTC(),
	}
	err = d.db.Update(func(txn *badger.Txn) (err error) {
		return txn.Set(TicketKey(ticket.Id), ticket.Bytes())
	})
	if err != nil {
		return Ticket{}, fmt.Errorf("failed to store ticket: %w", err)
	}
	log.Println("INFO|SUPPORT|CREATED", ticket.Id, ticket.Priority)
	return ticket, nil
}

// stream tickets through a channel
// tickets channel must be consumed at all
func (d *Desk) stream(ctx context.Context) (tickets <-chan Ticket, errChan <-chan error) {
	out := make(chan Ticket, 1_000)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)

		errs <- d.db.View(func(txn *badger.Txn) (err error) {
			options := badger.DefaultIteratorOptions
			options.Prefix = ticketsPrefix
			it := txn.NewIterator(options)
			defer it.Close()

			for it.Rewind(); it.ValidForPrefix(ticketsPrefix); it.Next() {
				if err = ctx.Err(); err != nil {
					return err
				}

				var ticket Ticket
				item := it.Item()
				err = item.Value(ticket.FromBytes)
				if err != nil {
					log.Println("ERROR|SUPPORT|STREAM", string(item.Key()), err)
					continue
				}
				out <- ticket
			}
			return nil
		})
	}()
	return out, errs
}

// List returns every ticket, newest first
func (d *Desk) List(ctx context.Context) (tickets []Ticket, err error) {
	stream, errChan := d.stream(ctx)
	defer utils.ConsumeChannel(stream)
	defer utils.ConsumeChannel(errChan)

	tickets = make([]Ticket, 0)
	for ticket := range stream {
		tickets = append(tickets, ticket)
	}
	err = <-errChan
	if err != nil {
		return nil, fmt.Errorf("failed to iterate tickets: %w", err)
	}

	slices.SortStableFunc(tickets, func(a, b Ticket) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return tickets, nil
}
