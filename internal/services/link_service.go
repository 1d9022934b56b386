package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/crm-electoral/app-crm/internal/config"
	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/crm-electoral/app-crm/internal/models"
	"github.com/crm-electoral/app-crm/internal/utils"
	"go.uber.org/zap"
)

// LinkService builds wa.me links. Nothing is sent from the server.
type LinkService struct {
	persons *PersonService
	logger  *logging.SafeLogger
}

// NewLinkService creates a new link service
func NewLinkService(persons *PersonService, logger *logging.SafeLogger) *LinkService {
	return &LinkService{persons: persons, logger: logger}
}

// RegistrationURL is the public self-registration page of a leader
func RegistrationURL(leaderCedula string) string {
	return strings.TrimRight(config.AppConfig.PublicBaseURL, "/") + "/registro/" + leaderCedula
}

// Invite builds a link inviting someone to register under a leader. Leaders
// always invite into their own team.
func (s *LinkService) Invite(ctx context.Context, identity models.SessionIdentity, req models.InviteLinkRequest) (*models.LinkResponse, error) {
	leaderCedula := identity.Cedula
	if identity.IsAdmin() {
		leaderCedula = utils.NormalizeCedula(req.CedulaLider)
		if leaderCedula == "" {
			return nil, fmt.Errorf("%w: cedula_lider es obligatoria", models.ErrValidation)
		}
	} else if identity.Role != models.SessionLider {
		return nil, models.ErrForbidden
	}

	leader, err := s.persons.find(ctx, leaderCedula)
	if err != nil {
		if errors.Is(err, models.ErrPersonNotFound) {
			return nil, models.ErrLeaderNotFound
		}
		return nil, err
	}
	if !leader.IsLeader() {
		return nil, models.ErrNotALeader
	}

	message := utils.InvitationMessage(req.Nombre, leader.NombreCompleto, RegistrationURL(leader.Cedula))
	return s.build(req.Telefono, message)
}

// Notify builds a link telling a registrant its current estado
func (s *LinkService) Notify(ctx context.Context, identity models.SessionIdentity, cedula string) (*models.LinkResponse, error) {
	person, err := s.persons.Get(ctx, identity, cedula)
	if err != nil {
		return nil, err
	}
	if person.Telefono == nil || *person.Telefono == "" {
		return nil, fmt.Errorf("%w: la persona no tiene teléfono registrado", models.ErrValidation)
	}

	link, err := s.build(*person.Telefono, utils.ApprovalMessage(person.NombreCompleto, string(person.Estado)))
	if err != nil {
		return nil, err
	}
	s.logger.Debug("notification link built",
		zap.String("nombre", utils.MaskName(person.NombreCompleto)),
		zap.String("estado", string(person.Estado)))
	return link, nil
}

func (s *LinkService) build(phone, message string) (*models.LinkResponse, error) {
	url, err := utils.BuildWhatsAppLink(phone, message)
	if err != nil {
		return nil, fmt.Errorf("%w: teléfono inválido", models.ErrValidation)
	}
	components, _ := utils.ParsePhoneNumber(phone)
	return &models.LinkResponse{
		URL:     url,
		Phone:   components.E164,
		Message: message,
	}, nil
}
