//go:build js && wasm

// Command wasm exposes the bus and link codecs to a browser front end that
// talks to the emulator's websocket link.
package main

import (
	"encoding/hex"
	"syscall/js"

	"stepbus/protocol"
)

func main() {
	js.Global().Set("stepbusWasm", js.ValueOf(map[string]interface{}{
		"encodeMove":      js.FuncOf(encodeMoveWrapper),
		"encodeControl":   js.FuncOf(encodeControlWrapper),
		"encodeSettings":  js.FuncOf(encodeSettingsWrapper),
		"decodeCommand":   js.FuncOf(decodeCommandWrapper),
		"parseStatus":     js.FuncOf(parseStatusWrapper),
		"encodeLinkFrame": js.FuncOf(encodeLinkFrameWrapper),
		"decodeLinkFrame": js.FuncOf(decodeLinkFrameWrapper),
		"crc16":           js.FuncOf(crc16Wrapper),
		"version":         protocol.Version,
	}))

	// Keep the program running
	select {}
}

// encodeMoveWrapper encodes the shortest move command for the arguments
// Args: target, [speed, [accelCode]]
// Returns: hex string
func encodeMoveWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf("error: missing target")
	}
	target := uint16(args[0].Int())

	var cmd protocol.Command
	switch {
	case len(args) >= 3:
		cmd = protocol.AccelSpeedMove(target, uint16(args[1].Int()), uint8(args[2].Int()))
	case len(args) == 2:
		speed := uint16(args[1].Int())
		if speed%protocol.SpeedMoveUnit != 0 {
			return js.ValueOf("error: speed without an accel code must be a multiple of 256")
		}
		cmd = protocol.SpeedMove(target, speed)
	default:
		cmd = protocol.Move(target)
	}
	return js.ValueOf(hex.EncodeToString(protocol.Encode(nil, cmd)))
}

// encodeControlWrapper encodes a single-byte command
// Args: opcode
func encodeControlWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf("error: missing opcode")
	}
	cmd := protocol.Control(byte(args[0].Int()))
	return js.ValueOf(hex.EncodeToString(protocol.Encode(nil, cmd)))
}

// encodeSettingsWrapper encodes a LoadSettings command
// Args: word, [word...]
func encodeSettingsWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || len(args) > protocol.MaxSettingWords {
		return js.ValueOf("error: need 1 to 8 setting words")
	}
	words := make([]uint16, len(args))
	for i, a := range args {
		words[i] = uint16(a.Int())
	}
	return js.ValueOf(hex.EncodeToString(protocol.Encode(nil, protocol.LoadSettings(words...))))
}

// decodeCommandWrapper decodes the bytes of one bus write
// Args: hexString
// Returns: {kind, target, speed, accelCode, reset, settings, error}
func decodeCommandWrapper(this js.Value, args []js.Value) interface{} {
	data, errMsg := hexArg(args)
	if errMsg != "" {
		return makeError(errMsg)
	}
	cmd, err := protocol.Decode(data)
	if err != nil {
		return makeError(err.Error())
	}

	settings := make([]interface{}, cmd.SettingCount)
	for i := range settings {
		settings[i] = int(cmd.Settings[i])
	}
	result := map[string]interface{}{
		"kind":      cmd.Kind.String(),
		"target":    int(cmd.Target),
		"speed":     int(cmd.Speed),
		"accelCode": int(cmd.AccelCode),
		"reset":     cmd.Reset,
		"settings":  settings,
	}
	if cmd.HasLimitControl {
		result["limitControl"] = int(cmd.LimitControl)
	}
	return js.ValueOf(result)
}

// parseStatusWrapper decodes a 4-byte status record
// Args: hexString
// Returns: {state, position, busy, motorOn, homed, error, errorCode}
func parseStatusWrapper(this js.Value, args []js.Value) interface{} {
	data, errMsg := hexArg(args)
	if errMsg != "" {
		return makeError(errMsg)
	}
	st, err := protocol.ParseStatus(data)
	if err != nil {
		return makeError(err.Error())
	}
	return js.ValueOf(map[string]interface{}{
		"state":     int(st.State),
		"position":  int(int16(st.Position())),
		"busy":      st.Busy(),
		"motorOn":   st.MotorOn(),
		"homed":     st.Homed(),
		"hasError":  st.HasError(),
		"errorCode": int(st.ErrorBits()),
	})
}

// encodeLinkFrameWrapper frames one bus transaction for the link
// Args: seq, addr, read (bool), payloadHex
// Returns: hex string
func encodeLinkFrameWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 4 {
		return js.ValueOf("error: missing arguments")
	}
	payload, err := hex.DecodeString(args[3].String())
	if err != nil {
		return js.ValueOf("error: invalid payload hex: " + err.Error())
	}
	out := protocol.NewScratchOutput()
	protocol.EncodeLinkFrame(out, protocol.LinkFrame{
		Seq:     uint8(args[0].Int()),
		Addr:    uint8(args[1].Int()),
		Read:    args[2].Bool(),
		Payload: payload,
	})
	return js.ValueOf(hex.EncodeToString(out.Result()))
}

// decodeLinkFrameWrapper decodes the first frame of a reply stream
// Args: hexString
// Returns: {seq, addr, read, failed, payload, consumed, error}
func decodeLinkFrameWrapper(this js.Value, args []js.Value) interface{} {
	data, errMsg := hexArg(args)
	if errMsg != "" {
		return makeError(errMsg)
	}
	f, n, err := protocol.DecodeLinkFrame(data)
	if err != nil {
		return makeError(err.Error())
	}
	return js.ValueOf(map[string]interface{}{
		"seq":      int(f.Seq),
		"addr":     int(f.Addr),
		"read":     f.Read,
		"failed":   f.Failed,
		"payload":  hex.EncodeToString(f.Payload),
		"consumed": n,
	})
}

// crc16Wrapper calculates the link checksum
// Args: hexString
// Returns: number (uint16)
func crc16Wrapper(this js.Value, args []js.Value) interface{} {
	data, errMsg := hexArg(args)
	if errMsg != "" {
		return js.ValueOf(0)
	}
	return js.ValueOf(int(protocol.CRC16(data)))
}

func hexArg(args []js.Value) ([]byte, string) {
	if len(args) < 1 {
		return nil, "missing hex string argument"
	}
	data, err := hex.DecodeString(args[0].String())
	if err != nil {
		return nil, "invalid hex string: " + err.Error()
	}
	return data, ""
}

func makeError(msg string) js.Value {
	return js.ValueOf(map[string]interface{}{"error": msg})
}
