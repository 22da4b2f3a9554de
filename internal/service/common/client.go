//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	api "github.com/oshokin/contact-ringer/internal/api/grpc/ringer"
	"github.com/oshokin/contact-ringer/internal/config"
	"github.com/oshokin/contact-ringer/internal/domain/ringer"
)

// Client wraps the RingerService client with typed helpers.
type Client struct {
	// conn is the underlying gRPC connection to the ringer server.
	conn *grpc.ClientConn
	// api invokes RingerService methods.
	api *api.RingerServiceClient
	// actor is attached to mutating requests when set.
	actor *api.Actor
	// dialOptions are appended to the default dial options.
	dialOptions []grpc.DialOption

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithDialOptions adds gRPC dial options, e.g. a custom dialer.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *Client) {
		c.dialOptions = append(c.dialOptions, opts...)
	}
}

// WithActor attaches actor to mutating requests.
func WithActor(actor *api.Actor) Option {
	return func(c *Client) {
		c.actor = actor
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errContactRequired is returned when a contact is not provided.
	errContactRequired = errors.New("contact must be provided")
)

// Dial establishes a gRPC connection to the ringer server.
// Note: this uses insecure transport credentials; the control API is meant
// for the local host or a trusted network.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	client := &Client{
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	dialOptions := append(
		[]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
		client.dialOptions...,
	)

	// Use the non-context NewClient API recommended by grpc-go
	// (DialContext is deprecated as of grpc-go v1.60+).
	conn, err := grpc.NewClient(address, dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("dial ringer server: %w", err)
	}

	client.conn = conn
	client.api = api.NewRingerServiceClient(conn)

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Status retrieves the engine status.
func (c *Client) Status(ctx context.Context) (*api.StatusReport, error) {
	resp, err := c.invoke(ctx, api.MethodStatus, nil, false)
	if err != nil {
		return nil, err
	}

	return api.StatusFromStruct(resp)
}

// Apply overrides the device for the named contact.
func (c *Client) Apply(ctx context.Context, name string) (*ringer.Contact, error) {
	resp, err := c.invoke(ctx, api.MethodApply, fields(api.FieldName, structpb.NewStringValue(name)), true)
	if err != nil {
		return nil, err
	}

	return api.ContactFromStruct(resp)
}

// Reset restores the baseline.
func (c *Client) Reset(ctx context.Context) error {
	_, err := c.invoke(ctx, api.MethodReset, nil, true)

	return err
}

// ScheduleReset arms a reset after delay.
func (c *Client) ScheduleReset(ctx context.Context, delay time.Duration) error {
	req := fields(api.FieldDelayMS, structpb.NewNumberValue(float64(delay.Milliseconds())))
	_, err := c.invoke(ctx, api.MethodScheduleReset, req, true)

	return err
}

// PostCallState reports a telephony phase change.
func (c *Client) PostCallState(ctx context.Context, phase ringer.CallPhase, number string) error {
	req := fields(
		api.FieldPhase, structpb.NewStringValue(string(phase)),
		api.FieldNumber, structpb.NewStringValue(number),
	)
	_, err := c.invoke(ctx, api.MethodPostCallState, req, false)

	return err
}

// PostSMS reports an incoming SMS.
func (c *Client) PostSMS(ctx context.Context, sender, body string) error {
	req := fields(
		api.FieldSender, structpb.NewStringValue(sender),
		api.FieldBody, structpb.NewStringValue(body),
	)
	_, err := c.invoke(ctx, api.MethodPostSMS, req, false)

	return err
}

// PostNotification reports a posted notification.
func (c *Client) PostNotification(ctx context.Context, pkg, key string, extras map[string]string) error {
	req := fields(
		api.FieldPackage, structpb.NewStringValue(pkg),
		api.FieldKey, structpb.NewStringValue(key),
		api.FieldExtras, structpb.NewStructValue(api.StringMapToStruct(extras)),
	)
	_, err := c.invoke(ctx, api.MethodPostNotification, req, false)

	return err
}

// RemoveNotification reports a removed notification.
func (c *Client) RemoveNotification(ctx context.Context, pkg, key string) error {
	req := fields(
		api.FieldPackage, structpb.NewStringValue(pkg),
		api.FieldKey, structpb.NewStringValue(key),
	)
	_, err := c.invoke(ctx, api.MethodRemoveNotification, req, false)

	return err
}

// UpsertContact designates a contact.
func (c *Client) UpsertContact(ctx context.Context, contact *ringer.Contact) (*ringer.Contact, error) {
	if contact == nil {
		return nil, errContactRequired
	}

	resp, err := c.invoke(ctx, api.MethodUpsertContact, api.ContactToStruct(contact), true)
	if err != nil {
		return nil, err
	}

	return api.ContactFromStruct(resp)
}

// DeleteContact removes a designated contact.
func (c *Client) DeleteContact(ctx context.Context, name string) error {
	_, err := c.invoke(ctx, api.MethodDeleteContact, fields(api.FieldName, structpb.NewStringValue(name)), true)

	return err
}

// ListContacts returns the designated contacts.
func (c *Client) ListContacts(ctx context.Context) ([]*ringer.Contact, error) {
	resp, err := c.invoke(ctx, api.MethodListContacts, nil, false)
	if err != nil {
		return nil, err
	}

	return api.ContactsFromStruct(resp)
}

// invoke calls a method under the call timeout, attaching the actor to mutating requests.
func (c *Client) invoke(ctx context.Context, method string, req *structpb.Struct, mutating bool) (*structpb.Struct, error) {
	if req == nil {
		req = new(structpb.Struct)
	}

	if mutating && c.actor != nil {
		if req.Fields == nil {
			req.Fields = make(map[string]*structpb.Value)
		}

		req.Fields[api.FieldActor] = structpb.NewStructValue(api.ActorToStruct(c.actor))
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.Invoke(callCtx, method, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	return resp, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}

// fields builds a request from alternating names and values.
func fields(kvs ...any) *structpb.Struct {
	s := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(kvs)/2)}

	for i := 0; i+1 < len(kvs); i += 2 {
		name, _ := kvs[i].(string)
		value, _ := kvs[i+1].(*structpb.Value)
		s.Fields[name] = value
	}

	return s
}
