// Command audioclient streams a WAV file over the WebSocket protocol and
// prints the transcript results. Useful for exercising the service end to end
// against either provider.
package main

import (
	"encoding/binary"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"ai-speech-diarization-service/internal/models"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

// Stream audio in chunks to simulate real-time streaming
// At 16kHz 16-bit mono = 32000 bytes/second
// 100ms chunks = 3200 bytes
const chunkSize = 3200
const chunkIntervalMs = 100

func main() {
	audioFile := flag.String("audio", "testdata/sample-16khz.wav", "Path to WAV file (16kHz 16-bit mono)")
	serverURL := flag.String("server", "ws://localhost:8080/ws", "WebSocket server URL")
	sessionId := flag.String("session", "", "Session ID (server mints one when empty)")
	customerId := flag.String("customer", "customer-demo", "Customer ID")
	streamId := flag.String("stream", "stream-"+time.Now().Format("150405"), "Stream ID")
	realtime := flag.Bool("realtime", true, "Pace chunks at real-time speed")
	flag.Parse()

	f, err := os.Open(*audioFile)
	if err != nil {
		log.Fatalf("Failed to open audio file: %v", err)
	}
	defer f.Close()

	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		log.Fatalf("Failed to read WAV header: %v", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		log.Fatal("Not a valid WAV file")
	}

	audioFormat := binary.LittleEndian.Uint16(header[20:22])
	numChannels := binary.LittleEndian.Uint16(header[22:24])
	sampleRate := binary.LittleEndian.Uint32(header[24:28])
	bitsPerSample := binary.LittleEndian.Uint16(header[34:36])
	log.Printf("WAV file: format=%d channels=%d sampleRate=%d bitsPerSample=%d",
		audioFormat, numChannels, sampleRate, bitsPerSample)
	if audioFormat != 1 {
		log.Fatal("Only PCM format supported")
	}

	conn, _, err := websocket.DefaultDialer.Dial(*serverURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()
	log.Printf("Connected to %s", *serverURL)

	done := make(chan struct{})
	go readResults(conn, done)

	sendControl(conn, models.TypeAudioStreamStart, models.StreamStart{
		SessionID:  *sessionId,
		CustomerID: *customerId,
		StreamID:   *streamId,
		Codec:      "pcm16",
		SampleRate: int(sampleRate),
		ClientTs:   time.Now().UnixMilli(),
	})

	chunk := make([]byte, chunkSize)
	var totalBytes int64
	var seq int64
	startTime := time.Now()

	for {
		n, err := f.Read(chunk)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("Failed to read audio: %v", err)
		}

		seq++
		totalBytes += int64(n)

		sendControl(conn, models.TypeAudioChunkMeta, models.ChunkMeta{
			Seq:            seq,
			Ts:             time.Now().UnixMilli(),
			DurationMsHint: chunkIntervalMs,
		})
		if err := conn.WriteMessage(websocket.BinaryMessage, chunk[:n]); err != nil {
			log.Fatalf("Failed to send audio: %v", err)
		}

		if seq%10 == 0 {
			log.Printf("Sent chunk %d (%d bytes total)", seq, totalBytes)
		}
		if *realtime {
			time.Sleep(chunkIntervalMs * time.Millisecond)
		}
	}

	elapsed := time.Since(startTime)
	log.Printf("Finished streaming: %d chunks, %d bytes in %v", seq, totalBytes, elapsed)

	log.Println("Stopping stream, waiting for final transcripts...")
	sendControl(conn, models.TypeAudioStreamStop, models.StreamStop{
		CustomerID: *customerId,
		StreamID:   *streamId,
		Reason:     "user_stopped",
	})

	select {
	case <-done:
		log.Println("Stream completed")
	case <-time.After(30 * time.Second):
		log.Fatal("Timed out waiting for ready_to_stop")
	}
}

func sendControl(conn *websocket.Conn, msgType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Fatalf("Failed to marshal %s: %v", msgType, err)
	}
	if err := conn.WriteJSON(models.ControlMessage{Type: msgType, Data: data}); err != nil {
		log.Fatalf("Failed to send %s: %v", msgType, err)
	}
}

// readResults prints incoming messages until the server signals ready_to_stop.
func readResults(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Printf("Read ended: %v", err)
			return
		}

		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &probe); err != nil {
			continue
		}

		switch probe.Type {
		case models.TypeTranscript:
			var res models.Result
			if err := json.Unmarshal(data, &res); err != nil {
				continue
			}
			if res.Final {
				for _, line := range res.Lines {
					log.Printf("[speaker %d] %s", line.Speaker, line.Text)
				}
			} else if res.BufferTranscription != "" {
				log.Printf("... %s", res.BufferTranscription)
			}
		case models.TypeReadyToStop:
			return
		case models.TypeError:
			var msg models.ControlMessage
			_ = json.Unmarshal(data, &msg)
			log.Printf("Server error: %s", msg.Message)
		default:
			log.Printf("<- %s", probe.Type)
		}
	}
}
