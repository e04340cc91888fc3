package room

import (
	"context"
	"encoding/json"

	"github.com/DoyleJ11/checkers-match-backend/internal/engine"
)

func (r *Room) Join(ctx context.Context, p engine.Player) (StartInfo, error) {
	reply := make(chan JoinResult, 1)
	if err := r.post(ctx, Join{Player: p, Reply: reply}); err != nil {
		return StartInfo{}, err
	}
	res, err := await(ctx, r, reply)
	if err != nil {
		return StartInfo{}, err
	}
	return res.Start, res.Err
}

// Move submits an opaque move. An out-of-turn move returns
// engine.ErrWrongTurn after the sender has been sent a sync_state correction.
func (r *Room) Move(ctx context.Context, connID string, payload json.RawMessage) error {
	return r.call(ctx, func(reply chan error) Msg { return Move{ConnID: connID, Payload: payload, Reply: reply} })
}

// Sync is read-only. Started is false while the room is still waiting.
func (r *Room) Sync(ctx context.Context) (SyncResult, error) {
	reply := make(chan SyncResult, 1)
	if err := r.post(ctx, RequestSync{Reply: reply}); err != nil {
		return SyncResult{}, err
	}
	return await(ctx, r, reply)
}

func (r *Room) ReportTimeout(ctx context.Context, connID string) error {
	return r.call(ctx, func(reply chan error) Msg { return ReportTimeout{ConnID: connID, Reply: reply} })
}

func (r *Room) Leave(ctx context.Context, connID string) error {
	return r.call(ctx, func(reply chan error) Msg { return Leave{ConnID: connID, Reply: reply} })
}

func (r *Room) Disconnect(ctx context.Context, connID string) error {
	return r.call(ctx, func(reply chan error) Msg { return Disconnect{ConnID: connID, Reply: reply} })
}

func (r *Room) GameOver(ctx context.Context, connID string, winner engine.Winner) error {
	return r.call(ctx, func(reply chan error) Msg { return GameOver{ConnID: connID, Winner: winner, Reply: reply} })
}

// Close destroys the room silently. Closing a destroyed room is a no-op.
func (r *Room) Close(ctx context.Context) error {
	err := r.call(ctx, func(reply chan error) Msg { return Shutdown{Reply: reply} })
	if err == ErrRoomNotFound {
		return nil
	}
	return err
}

func (r *Room) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := r.post(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	return await(ctx, r, reply)
}

func (r *Room) call(ctx context.Context, build func(chan error) Msg) error {
	reply := make(chan error, 1)
	if err := r.post(ctx, build(reply)); err != nil {
		return err
	}
	res, err := await(ctx, r, reply)
	if err != nil {
		return err
	}
	return res
}

func (r *Room) post(ctx context.Context, m Msg) error {
	if r.ctx.Err() != nil {
		return ErrRoomNotFound
	}
	select {
	case r.inbox <- m:
		return nil
	case <-r.ctx.Done():
		return ErrRoomNotFound
	case <-ctx.Done():
		return ctx.Err()
	}
}

// await waits for a reply. The loop writes the reply before it cancels its
// context, so a reply is still picked up when both are ready.
func await[T any](ctx context.Context, r *Room, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-r.ctx.Done():
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrRoomNotFound
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
