package settings

// Known keys. Any other key is stored as-is.
const (
	KeyTaxRate        = "tva_taux"
	KeyEmailSender    = "email_sender"
	KeyEmailSignature = "email_signature"
	KeyPaymentTerm    = "payment_term_days"
	KeyIBAN           = "iban"
	KeyCompanyName    = "company_name"
	KeyCompanyAddress = "company_address"
	KeyCompanySIRET   = "company_siret"
	KeyCompanyVAT     = "company_vat_number"
	KeyCompanyPhone   = "company_phone"
	KeyCompanyEmail   = "company_email"
)

// Defaults are the values seeded on a fresh install.
var Defaults = map[string]string{
	KeyCompanyName:    "Rapid-Pub",
	KeyCompanyAddress: "123 rue de l'Imprimerie, 75001 Paris",
	KeyCompanySIRET:   "123 456 789 00012",
	KeyCompanyVAT:     "FR12345678901",
	KeyCompanyPhone:   "01 23 45 67 89",
	KeyCompanyEmail:   "contact@rapid-pub.fr",
	KeyTaxRate:        "20",
	KeyPaymentTerm:    "30",
	KeyIBAN:           "FR76 1234 5678 9012 3456 7890 123",
	KeyEmailSender:    "devis@rapid-pub.fr",
	KeyEmailSignature: "Cordialement,\n\nL'équipe Rapid-Pub",
}

// Company is the letterhead printed on documents.
type Company struct {
	Name        string
	Address     string
	SIRET       string
	VATNumber   string
	Phone       string
	Email       string
	IBAN        string
	PaymentTerm string
}

func companyFrom(values map[string]string) Company {
	return Company{
		Name:        values[KeyCompanyName],
		Address:     values[KeyCompanyAddress],
		SIRET:       values[KeyCompanySIRET],
		VATNumber:   values[KeyCompanyVAT],
		Phone:       values[KeyCompanyPhone],
		Email:       values[KeyCompanyEmail],
		IBAN:        values[KeyIBAN],
		PaymentTerm: values[KeyPaymentTerm],
	}
}
