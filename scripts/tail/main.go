// Command tail is a manual smoke client: it logs in, opens the websocket
// stream for a room, and prints every event the server pushes.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/avolkhov/mxchat-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("tail: %v", err)
		os.Exit(1)
	}
}

func run() error {
	base := flag.String("base", "http://localhost:8008", "server base URL")
	user := flag.String("user", "tester", "username")
	password := flag.String("password", "password123", "password")
	room := flag.String("room", "", "room id to tail; empty creates a fresh room")
	from := flag.String("from", "", "stream token to resume from")
	timeout := flag.Duration("timeout", time.Minute, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	token, err := login(ctx, *base, *user, *password)
	if err != nil {
		return err
	}

	roomID := *room
	if roomID == "" {
		roomID, err = createRoom(ctx, *base, token)
		if err != nil {
			return err
		}
		fmt.Printf("created room %s\n", roomID)
	}

	wsURL, err := url.Parse(*base)
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = "/ws"
	wsURL.RawQuery = url.Values{
		"access_token": {token},
		"room_id":      {roomID},
		"from":         {*from},
	}.Encode()

	conn, _, err := websocket.Dial(ctx, wsURL.String(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		switch outbound.Type {
		case proto.OutboundTypeEvent:
			fmt.Printf("event: %s\n", outbound.Event)
		case proto.OutboundTypeError:
			return fmt.Errorf("stream error: %s (%s)", outbound.Error.Msg, outbound.Error.Code)
		default:
			fmt.Printf("unknown envelope: type=%s\n", outbound.Type)
		}
	}
}

func login(ctx context.Context, base, user, password string) (string, error) {
	// Register first; a collision just means the user already exists.
	_, _ = postJSON(ctx, base+"/_matrix/client/r0/register", "", map[string]string{
		"username": user,
		"password": password,
	})

	body, err := postJSON(ctx, base+"/_matrix/client/r0/login", "", map[string]string{
		"type":     "m.login.password",
		"user":     user,
		"password": password,
	})
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("login rejected: %s", body)
	}
	return resp.AccessToken, nil
}

func createRoom(ctx context.Context, base, token string) (string, error) {
	body, err := postJSON(ctx, base+"/_matrix/client/r0/createRoom", token, map[string]string{})
	if err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}
	var resp struct {
		RoomID string `json:"room_id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	if resp.RoomID == "" {
		return "", fmt.Errorf("create room rejected: %s", body)
	}
	return resp.RoomID, nil
}

func postJSON(ctx context.Context, url, token string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
