package api

import (
	"context"

	"eggscan/internal/domain/entity"
)

func handlePing(context.Context, *Session, Request) (interface{}, error) {
	return PongResponse{Action: actionPong}, nil
}

// handleDetection отвечает в структурированном режиме: список меток,
// уверенность и, при необходимости, исходное изображение.
func (g *Gateway) handleDetection(ctx context.Context, s *Session, req Request) (interface{}, error) {
	out := g.app.InspectionService.InspectDataURL(ctx, s.id, req.Image)
	if !out.OK() {
		return s.failure(out.Failure)
	}

	resp := DetectionResponse{
		Action:     actionDetectionResult,
		Defects:    []string{out.Prediction.Label},
		Confidence: out.Prediction.Confidence,
	}
	if g.echoImage {
		resp.Image = req.Image
	}
	return resp, nil
}

func (g *Gateway) handleStream(ctx context.Context, s *Session, req Request) (interface{}, error) {
	return s.streamResult(g.app.InspectionService.InspectDataURL(ctx, s.id, req.Image))
}

func (g *Gateway) handleStats(ctx context.Context, _ *Session, _ Request) (interface{}, error) {
	return StatsResponse{
		Action:         actionStatsResult,
		ActiveSessions: g.app.SessionService.Active(ctx),
		Detections:     g.app.Stats.Snapshot(),
	}, nil
}

// streamResult формирует ответ потокового режима. Рамка это центральная
// заглушка, рассчитанная конвейером.
func (s *Session) streamResult(out entity.Outcome) (interface{}, error) {
	if !out.OK() {
		return s.failure(out.Failure)
	}
	return StreamResponse{
		Defect:     out.Prediction.Label,
		Confidence: out.Prediction.Confidence,
		BBox:       out.Prediction.Box.Slice(),
	}, nil
}
