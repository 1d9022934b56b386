package models

// LinkResponse is a generated wa.me deep link
type LinkResponse struct {
	URL     string `json:"url"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// InviteLinkRequest asks for a self-registration invitation link
type InviteLinkRequest struct {
	Telefono string `json:"telefono" binding:"required"`
	Nombre   string `json:"nombre,omitempty"`
	// CedulaLider picks the inviting leader when an admin generates the link
	CedulaLider string `json:"cedula_lider,omitempty"`
}
