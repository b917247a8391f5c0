package httpadapter

import (
	"context"
	"encoding/base64"
	"log/slog"
	"time"

	"folio/contexts/publishing-core/registry-service/application/commands"
	"folio/contexts/publishing-core/registry-service/application/queries"
	"folio/contexts/publishing-core/registry-service/domain/entities"
	domainerrors "folio/contexts/publishing-core/registry-service/domain/errors"
	"folio/contexts/publishing-core/registry-service/ports"
	httptransport "folio/contexts/publishing-core/registry-service/transport/http"
)

type Handler struct {
	InitAuthority  commands.InitAuthorityUseCase
	MintCapability commands.MintCapabilityUseCase
	PublishPaper   commands.PublishPaperUseCase
	GetPaper       queries.GetPaperUseCase
	ListPapers     queries.ListPapersUseCase
	GetCapability  queries.GetCapabilityUseCase
	Logger         *slog.Logger
}

func (h Handler) InitAuthorityHandler(
	ctx context.Context,
	req httptransport.InitAuthorityRequest,
) (httptransport.InitAuthorityResponse, error) {
	authority, err := h.InitAuthority.Execute(ctx, commands.InitAuthorityCommand{
		AdminAccount: req.AdminAccount,
		PublicKey:    req.PublicKey,
	})
	if err != nil {
		return httptransport.InitAuthorityResponse{}, err
	}
	return httptransport.InitAuthorityResponse{
		Status:        "success",
		AdminAccount:  authority.AdminAccount,
		PublicKey:     authority.EncodedKey,
		InitializedAt: authority.InitializedAt.UTC().Format(time.RFC3339),
	}, nil
}

func (h Handler) MintCapabilityHandler(
	ctx context.Context,
	callerAccount string,
	req httptransport.MintCapabilityRequest,
) (httptransport.MintCapabilityResponse, error) {
	contentDigest, err := base64.StdEncoding.DecodeString(req.ContentDigest)
	if err != nil || len(contentDigest) == 0 {
		return httptransport.MintCapabilityResponse{}, domainerrors.ErrInvalidRequest
	}
	signature, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil {
		return httptransport.MintCapabilityResponse{}, domainerrors.ErrInvalidRequest
	}

	capability, err := h.MintCapability.Execute(ctx, commands.MintCapabilityCommand{
		CallerAccount: callerAccount,
		Request: entities.AuthorizationRequest{
			ContentDigest: contentDigest,
			ContentUID:    req.ContentUID,
			Price:         req.Price,
			RoyaltyBps:    req.RoyaltyBps,
			Recipient:     req.Recipient,
			ExpiresAt:     req.ExpiresAt,
		},
		Signature: signature,
	})
	if err != nil {
		return httptransport.MintCapabilityResponse{}, err
	}
	return httptransport.MintCapabilityResponse{
		Status: "success",
		Data:   capabilityToDTO(capability),
	}, nil
}

func (h Handler) GetCapabilityHandler(
	ctx context.Context,
	callerAccount string,
) (httptransport.GetCapabilityResponse, error) {
	capability, err := h.GetCapability.Execute(ctx, callerAccount)
	if err != nil {
		return httptransport.GetCapabilityResponse{}, err
	}
	return httptransport.GetCapabilityResponse{
		Status: "success",
		Data:   capabilityToDTO(capability),
	}, nil
}

func (h Handler) PublishPaperHandler(
	ctx context.Context,
	callerAccount string,
	req httptransport.PublishPaperRequest,
) (httptransport.PublishPaperResponse, error) {
	paper, err := h.PublishPaper.Execute(ctx, commands.PublishPaperCommand{
		CallerAccount: callerAccount,
		Authors:       req.Authors,
		CitedPapers:   req.CitedPapers,
	})
	if err != nil {
		return httptransport.PublishPaperResponse{}, err
	}
	return httptransport.PublishPaperResponse{
		Status: "success",
		Data:   paperToDTO(paper),
	}, nil
}

func (h Handler) GetPaperHandler(
	ctx context.Context,
	paperID string,
) (httptransport.GetPaperResponse, error) {
	paper, err := h.GetPaper.Execute(ctx, paperID)
	if err != nil {
		return httptransport.GetPaperResponse{}, err
	}
	return httptransport.GetPaperResponse{
		Status: "success",
		Data:   paperToDTO(paper),
	}, nil
}

func (h Handler) ListPapersHandler(
	ctx context.Context,
	req httptransport.ListPapersRequest,
) (httptransport.ListPapersResponse, error) {
	papers, nextCursor, err := h.ListPapers.Execute(ctx, ports.PaperListFilter{
		Author: req.Author,
		Cursor: req.Cursor,
		Limit:  req.Limit,
	})
	if err != nil {
		return httptransport.ListPapersResponse{}, err
	}
	resp := httptransport.ListPapersResponse{
		Status:     "success",
		Items:      make([]httptransport.PaperDTO, 0, len(papers)),
		NextCursor: nextCursor,
	}
	for _, paper := range papers {
		resp.Items = append(resp.Items, paperToDTO(paper))
	}
	return resp, nil
}

func capabilityToDTO(capability entities.Capability) httptransport.CapabilityDTO {
	return httptransport.CapabilityDTO{
		OwnerAccount:  capability.OwnerAccount,
		ContentDigest: base64.StdEncoding.EncodeToString(capability.ContentDigest),
		ContentUID:    capability.ContentUID,
		Price:         capability.Price,
		RoyaltyBps:    capability.RoyaltyBps,
		ExpiresAt:     capability.ExpiresAt.UTC().Format(time.RFC3339),
		MintedAt:      capability.MintedAt.UTC().Format(time.RFC3339),
	}
}

func paperToDTO(paper entities.Paper) httptransport.PaperDTO {
	return httptransport.PaperDTO{
		PaperID:       paper.PaperID,
		ContentDigest: base64.StdEncoding.EncodeToString(paper.ContentDigest),
		ContentUID:    paper.ContentUID,
		Authors:       paper.Authors,
		Price:         paper.Price,
		RoyaltyBps:    paper.RoyaltyBps,
		CitedPapers:   paper.CitedPapers,
		PublishedAt:   paper.PublishedAt.UTC().Format(time.RFC3339),
	}
}
