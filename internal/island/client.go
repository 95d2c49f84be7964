package island

// ClientModuleSource is the `isle:island` module imported by generated
// universal stubs. Its wrap produces the same markers and metadata encoding
// as Wrap, for components that render to HTML strings in the server runtime.
// Props JSON cannot represent (functions, symbols, undefined, bigints and
// non-finite numbers) throw a ProtocolEncodingError before the component
// renders, where JSON.stringify would drop or coerce them.
const ClientModuleSource = `const ESCAPES = {
  "<": "\\u003c",
  ">": "\\u003e",
  "&": "\\u0026",
  "/": "\\/",
  "\u2028": "\\u2028",
  "\u2029": "\\u2029",
};

export const BOOTSTRAP = '` + BootstrapScript + `';

export class ProtocolEncodingError extends Error {
  constructor(path, key, kind) {
    super("island " + path + ": prop " + JSON.stringify(key) + " is " + kind + " and cannot be encoded");
    this.name = "ProtocolEncodingError";
    this.path = path;
  }
}

function encodable(path) {
  return (key, value) => {
    const kind = typeof value;
    if (kind === "function" || kind === "symbol" || kind === "bigint" || (value === undefined && key !== "")) {
      throw new ProtocolEncodingError(path, key, kind);
    }
    if (kind === "number" && !Number.isFinite(value)) {
      throw new ProtocolEncodingError(path, key, String(value));
    }
    return value;
  };
}

export function encodeMetadata(meta) {
  return JSON.stringify(meta, encodable(meta.path)).replace(/[<>&\/\u2028\u2029]/g, (c) => ESCAPES[c]);
}

export function wrap(path, Component, ...args) {
  const props = args.length > 0 && args[0] !== undefined ? args[0] : null;
  const meta = encodeMetadata({ path, props });
  const markup = Component(...args);
  return "` + MarkerStart + `<!--" + meta + "-->" + markup + "` + MarkerEnd + `" + BOOTSTRAP;
}
`
