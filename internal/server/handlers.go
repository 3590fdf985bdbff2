// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, stats, and the built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Tyrowin/roombroker/internal/broker"
)

// WebSocketHandler handles WebSocket upgrade requests. A session token may
// be given as "Authorization: Bearer <token>" or as the token query
// parameter; an invalid token is refused, a missing one yields a connection
// that cannot join rooms.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	identity, err := s.authenticate(r)
	if err != nil {
		s.log.Info("Rejected WebSocket connection with invalid session token", "addr", r.RemoteAddr, "err", err)
		http.Error(w, "Invalid session token.", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "addr", r.RemoteAddr, "err", err)
		return
	}

	client := NewClient(conn, s.hub, r.RemoteAddr)

	// The hub launches the pump goroutines once the client is registered.
	if !s.hub.Register(client, identity) {
		_ = conn.Close()
	}
}

func (s *Server) authenticate(r *http.Request) (*broker.Identity, error) {
	token := r.URL.Query().Get("token")
	// other schemes carry no session token
	if scheme, value, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "Bearer") {
		token = strings.TrimSpace(value)
	}
	if token == "" {
		return nil, nil
	}

	identity, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

type statsResponse struct {
	Connections int               `json:"connections"`
	Sessions    int               `json:"sessions"`
	Rooms       []broker.RoomInfo `json:"rooms"`
}

// StatsHandler reports live connections and rooms as JSON.
func (s *Server) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed.", http.StatusMethodNotAllowed)
		return
	}

	stats := statsResponse{
		Connections: s.broker.Registry.Count(),
		Sessions:    s.sessions.Len(),
		Rooms:       s.broker.Rooms.Rooms(),
	}
	if stats.Rooms == nil {
		stats.Rooms = []broker.RoomInfo{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		s.log.Warn("Error writing stats response", "err", err)
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Room broker is running!")
}

// TestPageHandler serves an HTML page for trying the broker from a browser:
// connect with a session token, join a room, and chat.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, testPage)
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>Room Broker Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] { width: 220px; padding: 5px; margin-right: 10px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>Room Broker Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="tokenInput" placeholder="Session token">
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
    </div>
    <div>
        <input type="text" id="roomInput" placeholder="Room" value="lobby" disabled>
        <button id="joinButton" onclick="joinRoom()" disabled>Join</button>
        <button id="leaveButton" onclick="leaveRoom()" disabled>Leave</button>
    </div>
    <div>
        <input type="text" id="messageInput" placeholder="Type a message..." disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>

    <div id="messages"></div>

    <script>
        let ws = null;
        const messagesDiv = document.getElementById('messages');
        const statusDiv = document.getElementById('status');
        const controls = ['roomInput', 'joinButton', 'leaveButton', 'messageInput', 'sendButton']
            .map(id => document.getElementById(id));

        function addLine(text, color) {
            const line = document.createElement('div');
            line.style.margin = '5px 0';
            line.style.color = color || 'gray';
            line.textContent = text;
            messagesDiv.appendChild(line);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function render(frame) {
            switch (frame.type) {
            case 'message':
                addLine('#' + frame.seq + ' ' + frame.username + ': ' + frame.text, 'black');
                break;
            case 'history':
                addLine(frame.text, 'green');
                (frame.history || []).forEach(m => addLine('#' + m.seq + ' ' + m.username + ': ' + m.text, 'dimgray'));
                break;
            case 'error':
                addLine('Error (' + frame.code + '): ' + frame.text, 'red');
                break;
            default:
                addLine(frame.text, 'gray');
            }
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            controls.forEach(c => c.disabled = !connected);
            document.getElementById('connectButton').textContent = connected ? 'Disconnect' : 'Connect';
        }

        function connect() {
            const token = document.getElementById('tokenInput').value.trim();
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws?token=' + encodeURIComponent(token));
            ws.onopen = () => { addLine('Connected'); updateStatus(true); };
            ws.onmessage = event => render(JSON.parse(event.data));
            ws.onclose = () => { addLine('Connection closed'); updateStatus(false); ws = null; };
            ws.onerror = () => { addLine('Connection error'); updateStatus(false); };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function joinRoom() {
            ws.send(JSON.stringify({ type: 'join', room: document.getElementById('roomInput').value }));
        }

        function leaveRoom() {
            ws.send(JSON.stringify({ type: 'leave' }));
        }

        function sendMessage() {
            const input = document.getElementById('messageInput');
            const text = input.value.trim();
            if (text && ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({ type: 'send', text: text }));
                input.value = '';
            }
        }

        document.getElementById('messageInput').addEventListener('keypress', e => {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`
