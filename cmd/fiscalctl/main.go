// fiscalctl herramienta de operación del emisor NFC-e.
//
// Uso:
//
//	fiscalctl encrypt   --value <secreto>          cifra un secreto con ENCRYPTION_KEY (encrypted:...)
//	fiscalctl status                               consulta NFeStatusServico4 con el perfil activo
//	fiscalctl reconcile                            ejecuta un barrido de documentos en PROCESSING
//	fiscalctl danfe     --in nfeProc.xml [--out]   genera la DANFE (pdf | text) desde un nfeProc
//	fiscalctl token     --user <id> --role <rol>   genera un JWT para pruebas de la API
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/jhoicas/nfce-emissor/internal/bootstrap"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/pdf"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/vault"
	"github.com/jhoicas/nfce-emissor/pkg/config"
	"github.com/jhoicas/nfce-emissor/pkg/jwt"
	"github.com/jhoicas/nfce-emissor/pkg/logger"
)

type command struct {
	summary string
	run     func(ctx context.Context, args []string) error
}

var commands = map[string]command{
	"encrypt":   {"cifra un secreto para la configuración fiscal", runEncrypt},
	"status":    {"consulta el estado del servicio de la SEFAZ", runStatus},
	"reconcile": {"reconcilia documentos en PROCESSING", runReconcile},
	"danfe":     {"genera la DANFE a partir de un nfeProc", runDanfe},
	"token":     {"genera un JWT de prueba", runToken},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "comando desconocido: %s\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err := cmd.run(context.Background(), os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "fiscalctl %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "uso: fiscalctl <comando> [flags]")
	for _, name := range []string{"encrypt", "status", "reconcile", "danfe", "token"} {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", name, commands[name].summary)
	}
}

func runEncrypt(_ context.Context, args []string) error {
	fs := pflag.NewFlagSet("encrypt", pflag.ContinueOnError)
	value := fs.String("value", "", "secreto en claro (vacío = leer de stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	plain := *value
	if plain == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		plain = strings.TrimRight(string(data), "\r\n")
	}
	v, err := vault.New(cfg.Fiscal.EncryptionKey)
	if err != nil {
		return err
	}
	sealed, err := v.Seal(plain)
	if err != nil {
		return err
	}
	fmt.Println(sealed)
	return nil
}

func runStatus(ctx context.Context, args []string) error {
	fiscal, err := openFiscal(ctx, "status", args)
	if err != nil {
		return err
	}
	defer fiscal.Close()

	out, err := fiscal.Status.Check(ctx)
	if err != nil {
		return err
	}
	return printJSON(out)
}

func runReconcile(ctx context.Context, args []string) error {
	fiscal, err := openFiscal(ctx, "reconcile", args)
	if err != nil {
		return err
	}
	defer fiscal.Close()

	out, err := fiscal.Reconciler.Sweep(ctx)
	if err != nil {
		return err
	}
	return printJSON(out)
}

func runDanfe(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("danfe", pflag.ContinueOnError)
	in := fs.StringP("in", "i", "", "nfeProc XML de entrada (obligatorio)")
	out := fs.StringP("out", "o", "", "archivo de salida (vacío = stdout)")
	format := fs.StringP("format", "f", "pdf", "pdf | text | escpos")
	charset := fs.String("charset", "", "codificación del XML de entrada (utf-8 | iso-8859-1); vacío = la del prólogo")
	columns := fs.Int("columns", pdf.DefaultColumns, "columnas de la DANFE en texto")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return fmt.Errorf("--in obligatorio")
	}
	raw, err := os.ReadFile(*in)
	if err != nil {
		return err
	}
	xmlData, err := decodeInput(raw, *charset)
	if err != nil {
		return err
	}

	var data []byte
	switch *format {
	case "pdf":
		data, err = pdf.NewMarotoDanfeRenderer().Render(ctx, xmlData)
	case "text":
		var s string
		s, err = pdf.NewTextDanfeRenderer(*columns).RenderString(xmlData)
		data = []byte(s)
	case "escpos":
		// CP850 para impresoras térmicas
		data, err = pdf.NewTextDanfeRenderer(*columns).Render(ctx, xmlData)
	default:
		return fmt.Errorf("formato desconocido %q", *format)
	}
	if err != nil {
		return err
	}
	if *out == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(*out, data, 0o644)
}

func runToken(_ context.Context, args []string) error {
	fs := pflag.NewFlagSet("token", pflag.ContinueOnError)
	user := fs.String("user", "", "identificador del usuario (obligatorio)")
	role := fs.String("role", jwt.RoleOperator, "admin | gerente | operador")
	minutes := fs.Int("minutes", 0, "vigencia en minutos (0 = JWT_EXPIRATION_MINUTES)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return fmt.Errorf("--user obligatorio")
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	exp := *minutes
	if exp <= 0 {
		exp = cfg.JWT.Expiration
	}
	tok, err := jwt.Generate(cfg.JWT.Secret, *user, *role, cfg.JWT.Issuer, exp)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

// openFiscal carga la configuración y arma el módulo fiscal con logs en stderr.
func openFiscal(ctx context.Context, name string, args []string) (*bootstrap.Fiscal, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	verbose := fs.BoolP("verbose", "v", false, "logs de depuración")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level := "warn"
	if *verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Env: "development", Level: level, Output: os.Stderr})
	return bootstrap.NewFiscal(ctx, cfg, log)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
