package handlers

import (
	"github.com/dmarcwatch/reportstack/internal/repository"
	"github.com/dmarcwatch/reportstack/services"
)

type APIHandlers struct {
	IngestedReports *IngestedReportsHandler
	DmarcReports    *DmarcReportsHandler
	Admin           *AdminHandler
}

func InitHandlers(r *repository.Repositories, s *services.Services) *APIHandlers {
	return &APIHandlers{
		IngestedReports: NewIngestedReportsHandler(r),
		DmarcReports:    NewDmarcReportsHandler(r),
		Admin:           NewAdminHandler(r, s),
	}
}
