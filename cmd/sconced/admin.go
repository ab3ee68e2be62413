package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"dev.acmcsuf.com/sconced"
	"dev.acmcsuf.com/sconced/xcolor"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"libdb.so/hrt"
)

// errQueueFull surfaces a dropped admin command; the engines shed load
// rather than block, so the caller just retries.
var errQueueFull = hrt.NewHTTPError(503, "command queue full")

type adminHandler struct {
	*chi.Mux
	strip *sconced.Sender[sconced.StripCommand]
	grid  *sconced.Sender[sconced.GridCommand]
}

func newAdminHandler(
	strip *sconced.Sender[sconced.StripCommand],
	grid *sconced.Sender[sconced.GridCommand],
	level slog.Level,
) *adminHandler {

	h := &adminHandler{
		Mux:   chi.NewRouter(),
		strip: strip,
		grid:  grid,
	}

	h.Use(httplog.RequestLogger(httplog.NewLogger("sconced-admin", httplog.Options{
		LogLevel: level,
		Concise:  true,
	})))

	h.Use(hrt.Use(hrt.Opts{
		Encoder: hrt.CombinedEncoder{
			Encoder: hrt.JSONEncoder,
			Decoder: hrt.URLDecoder,
		},
		ErrorWriter: hrt.TextErrorWriter,
	}))

	h.Post("/strip/color", hrt.Wrap(h.setPrimaryColor))
	h.Post("/strip/effect", hrt.Wrap(h.setEffect))
	h.Post("/strip/speed", hrt.Wrap(h.setEffectSpeed))
	h.Post("/strip/brightness", hrt.Wrap(h.setBrightness))
	h.Post("/grid/checked", hrt.Wrap(h.setChecked))

	return h
}

type colorRequest struct {
	R int `query:"r"`
	G int `query:"g"`
	B int `query:"b"`
	W int `query:"w"`
}

func (req colorRequest) color() (xcolor.Color, error) {
	for _, ch := range [...]int{req.R, req.G, req.B, req.W} {
		if ch < 0 || ch > 255 {
			return xcolor.Color{}, fmt.Errorf("channel value %d out of range", ch)
		}
	}
	return xcolor.Color{
		R: uint8(req.R),
		G: uint8(req.G),
		B: uint8(req.B),
		W: uint8(req.W),
	}, nil
}

func (h *adminHandler) setPrimaryColor(ctx context.Context, req colorRequest) (hrt.None, error) {
	color, err := req.color()
	if err != nil {
		return hrt.Empty, err
	}
	if !h.strip.TrySend(sconced.SetPrimaryColor{Color: color}) {
		return hrt.Empty, errQueueFull
	}
	return hrt.Empty, nil
}

type setEffectRequest struct {
	Effect string `query:"effect"`
}

func (h *adminHandler) setEffect(ctx context.Context, req setEffectRequest) (hrt.None, error) {
	var effect sconced.Effect
	switch strings.ToLower(req.Effect) {
	case "static":
		effect = sconced.EffectStatic
	case "rainbow":
		effect = sconced.EffectRainbow
	default:
		return hrt.Empty, fmt.Errorf("unknown effect %q", req.Effect)
	}
	if !h.strip.TrySend(sconced.SetEffect{Effect: effect}) {
		return hrt.Empty, errQueueFull
	}
	return hrt.Empty, nil
}

type setSpeedRequest struct {
	Speed int `query:"speed"`
}

func (h *adminHandler) setEffectSpeed(ctx context.Context, req setSpeedRequest) (hrt.None, error) {
	if req.Speed < 0 || req.Speed > 0xFFFF {
		return hrt.Empty, errors.New("speed out of range")
	}
	if !h.strip.TrySend(sconced.SetEffectSpeed{Speed: uint16(req.Speed)}) {
		return hrt.Empty, errQueueFull
	}
	return hrt.Empty, nil
}

type setBrightnessRequest struct {
	Level int `query:"level"`
}

func (h *adminHandler) setBrightness(ctx context.Context, req setBrightnessRequest) (hrt.None, error) {
	if req.Level < 0 || req.Level > 255 {
		return hrt.Empty, errors.New("brightness out of range")
	}
	if !h.strip.TrySend(sconced.SetBrightness{Level: uint8(req.Level)}) {
		return hrt.Empty, errQueueFull
	}
	return hrt.Empty, nil
}

type setCheckedRequest struct {
	Mask int `query:"mask"`
}

func (h *adminHandler) setChecked(ctx context.Context, req setCheckedRequest) (hrt.None, error) {
	if req.Mask < 0 || req.Mask > 0xFFFF {
		return hrt.Empty, errors.New("mask out of range")
	}
	if !h.grid.TrySend(sconced.SetCheckedMask{Mask: uint16(req.Mask)}) {
		return hrt.Empty, errQueueFull
	}
	return hrt.Empty, nil
}
